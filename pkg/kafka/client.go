// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"pedia-assist-go/internal/config"
	"pedia-assist-go/pkg/database"
	"pedia-assist-go/pkg/log"
	"pedia-assist-go/pkg/tasks"
)

// maxAttempts 是同一任务失败后仍交给 Kafka 重投的次数上限。
const maxAttempts = 3

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IngestTask) error
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// ProduceIngestTask 发送一个语料导入任务到 Kafka，以 TaskID 作为消息键。
func ProduceIngestTask(ctx context.Context, task tasks.IngestTask) error {
	if producer == nil {
		return errors.New("kafka producer is not initialized")
	}
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid ingest task: %w", err)
	}
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.TaskID),
		Value: taskBytes,
	})
}

// CloseProducer 关闭生产者并刷新未发送的消息。
func CloseProducer() error {
	if producer == nil {
		return nil
	}
	return producer.Close()
}

// StartConsumer 启动一个 Kafka 消费者来处理导入任务，ctx 取消时退出。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("从 Kafka 读取消息失败", err)
			}
			break
		}

		log.Infof("收到 Kafka 消息: offset %d", m.Offset)

		var task tasks.IngestTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			commit(r, m)
			continue
		}
		if err := task.Validate(); err != nil {
			log.Errorf("导入任务字段不完整, 直接提交: %v", err)
			commit(r, m)
			continue
		}

		log.Infof("开始处理导入任务: id=%s, type=%s, object=%s", task.TaskID, task.Type, task.ObjectName)
		attemptsKey := fmt.Sprintf("kafka:attempts:%s", task.TaskID)
		if err := processor.Process(ctx, task); err != nil {
			log.Errorf("处理导入任务失败: id=%s, Error: %v", task.TaskID, err)
			// 使用 Redis 计数失败次数，达到阈值后提交 offset 终止重试
			attempts, incErr := database.RDB.Incr(context.Background(), attemptsKey).Result()
			if incErr != nil {
				// Redis 异常时保守处理：不提交 offset，让 Kafka 重试
				continue
			}
			_ = database.RDB.Expire(context.Background(), attemptsKey, 24*time.Hour).Err()
			if attempts >= maxAttempts {
				log.Errorf("导入任务多次失败(>=%d)，提交 offset 终止重试: id=%s", maxAttempts, task.TaskID)
				commit(r, m)
			}
			continue
		}

		log.Infof("导入任务处理成功: id=%s", task.TaskID)
		_ = database.RDB.Del(context.Background(), attemptsKey).Err()
		commit(r, m)
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}

func commit(r *kafka.Reader, m kafka.Message) {
	if err := r.CommitMessages(context.Background(), m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}
