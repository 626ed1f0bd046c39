package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
)

// IoTService publish lệnh rào chắn xuống thiết bị qua AWS IoT Data Plane.
// iotDataClient nil nghĩa là chạy mô phỏng, lệnh chỉ được log.
type IoTService struct {
	iotDataClient *iotdataplane.Client
	topicPrefix   string
}

func NewIoTService(iotDataClient *iotdataplane.Client, topicPrefix string) *IoTService {
	if topicPrefix == "" {
		topicPrefix = "aero_park/command/barriers"
	}
	return &IoTService{iotDataClient: iotDataClient, topicPrefix: topicPrefix}
}

type barrierCommandPayload struct {
	Command   string `json:"command"`
	BarrierID string `json:"barrier_id"`
}

// SendBarrierCommand triển khai BarrierCommander.
func (s *IoTService) SendBarrierCommand(ctx context.Context, barrierID, action string) error {
	if s.iotDataClient == nil {
		log.Printf("IoT (mô phỏng): lệnh '%s' cho rào '%s'", action, barrierID)
		return nil
	}

	topic := fmt.Sprintf("%s/%s", s.topicPrefix, barrierID)
	payloadBytes, err := json.Marshal(barrierCommandPayload{Command: action, BarrierID: barrierID})
	if err != nil {
		return fmt.Errorf("lỗi marshal payload lệnh rào chắn: %w", err)
	}

	_, err = s.iotDataClient.Publish(ctx, &iotdataplane.PublishInput{
		Topic:   aws.String(topic),
		Qos:     1,
		Payload: payloadBytes,
	})
	if err != nil {
		return fmt.Errorf("lỗi publish lệnh MQTT: %w", err)
	}
	log.Printf("Đã publish lệnh '%s' tới topic %s", action, topic)
	return nil
}
