package iot

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/service"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// sensorMessage là payload cảm biến chỗ đỗ đẩy qua SQS (IoT Rule forward).
type sensorMessage struct {
	SpotID      string `json:"spot_id"`
	Occupied    *bool  `json:"occupied"`
	ForceSignal *int   `json:"force_signal,omitempty"`
	SensorID    string `json:"sensor_id,omitempty"`
}

// SQSConsumer lắng nghe hàng đợi sự kiện cảm biến và đẩy vào
// ParkingService như thể cảm biến gọi thẳng HTTP.
type SQSConsumer struct {
	sqsClient      *sqs.Client
	queueURL       string
	parkingService *service.ParkingService
	deviceService  *service.DeviceService
}

func NewSQSConsumer(client *sqs.Client, queueURL string, parkingService *service.ParkingService, deviceService *service.DeviceService) *SQSConsumer {
	return &SQSConsumer{
		sqsClient:      client,
		queueURL:       queueURL,
		parkingService: parkingService,
		deviceService:  deviceService,
	}
}

func (c *SQSConsumer) Start(ctx context.Context) {
	log.Printf("SQS Consumer đang bắt đầu lắng nghe queue: %s", c.queueURL)
	for {
		select {
		case <-ctx.Done():
			log.Println("SQS Consumer: context cancelled, stopping.")
			return
		default:
			receiveInput := &sqs.ReceiveMessageInput{
				QueueUrl:            &c.queueURL,
				MaxNumberOfMessages: 10,
				WaitTimeSeconds:     20,
				VisibilityTimeout:   60,
			}

			result, err := c.sqsClient.ReceiveMessage(ctx, receiveInput)
			if err != nil {
				log.Printf("SQS Consumer: Lỗi khi nhận message: %v", err)
				select {
				case <-time.After(5 * time.Second):
				case <-ctx.Done():
					log.Println("SQS Consumer: context cancelled while waiting for retry.")
					return
				}
				continue
			}

			if len(result.Messages) == 0 {
				continue
			}

			log.Printf("SQS Consumer: Đã nhận %d message(s)", len(result.Messages))

			for _, message := range result.Messages {
				if message.Body == nil {
					log.Println("SQS Consumer: Nhận được message với body rỗng. Đang xóa...")
					c.deleteMessage(ctx, message.ReceiptHandle)
					continue
				}

				processingErr := c.handleMessage(ctx, *message.Body)

				if processingErr == nil {
					c.deleteMessage(ctx, message.ReceiptHandle)
				} else {
					log.Printf("SQS Consumer: Lỗi khi xử lý message ID %s: %v. Message sẽ được xử lý lại sau visibility timeout.", *message.MessageId, processingErr)
				}
			}
		}
	}
}

func (c *SQSConsumer) handleMessage(ctx context.Context, body string) error {
	var msg sensorMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		// Payload hỏng sẽ không bao giờ parse được, xóa thay vì retry vô hạn.
		log.Printf("SQS Consumer: payload không hợp lệ, bỏ qua: %v. Body: %s", err, body)
		return nil
	}
	if msg.SpotID == "" || msg.Occupied == nil {
		log.Printf("SQS Consumer: payload thiếu spot_id hoặc occupied, bỏ qua. Body: %s", body)
		return nil
	}

	if c.deviceService != nil {
		c.deviceService.Heartbeat(ctx, msg.SensorID)
	}

	_, err := c.parkingService.HandleSensorUpdate(ctx, domain.SensorUpdateRequest{
		SpotID:      msg.SpotID,
		Occupied:    msg.Occupied,
		ForceSignal: msg.ForceSignal,
		SensorID:    msg.SensorID,
	})
	if err != nil {
		return fmt.Errorf("lỗi xử lý sự kiện cảm biến cho chỗ '%s': %w", msg.SpotID, err)
	}
	return nil
}

func (c *SQSConsumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		log.Println("SQS Consumer: Receipt handle rỗng, không thể xóa message.")
		return
	}
	_, delErr := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: receiptHandle,
	})
	if delErr != nil {
		log.Printf("SQS Consumer: Lỗi khi xóa message: %v", delErr)
	}
}
