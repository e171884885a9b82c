// Command corpusctl 是语料导入与运维的命令行工具。
package main

func main() {
	Execute()
}
