package shared

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AnalyticMessage is published for every successful redirect so downstream
// consumers can build click analytics without touching the serving path.
type AnalyticMessage struct {
	Id        string `json:"id"`
	ShortCode string `json:"shortCode"`
	LongUrl   string `json:"longUrl"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type RabbitMQ struct {
	connectionString string
	connection       *amqp.Connection
}

func getRabbitConnectionString() string {
	rabbitHost := os.Getenv("RABBITMQ_HOST")
	rabbitPort := os.Getenv("RABBITMQ_PORT")

	return fmt.Sprintf("amqp://guest:guest@%v:%v/", rabbitHost, rabbitPort)
}

func NewRabbitMQ(connectionString string) *RabbitMQ {
	if connectionString == "" {
		connectionString = getRabbitConnectionString()
	}
	return &RabbitMQ{
		connectionString: connectionString,
	}
}

func (r *RabbitMQ) Connect(delay time.Duration) error {
	if delay > 0 {
		time.Sleep(delay)
	}

	connection, err := amqp.Dial(r.connectionString)
	if err != nil {
		return err
	}

	r.connection = connection
	return nil
}

func (r *RabbitMQ) Close() error {
	return r.connection.Close()
}

func (r *RabbitMQ) Publish(ctx context.Context, queue string, message interface{}, headers amqp.Table) error {
	if r.connection.IsClosed() {
		if err := r.Connect(0); err != nil {
			return err
		}
	}

	channel, err := r.connection.Channel()
	if err != nil {
		return err
	}

	defer channel.Close()

	_, err = channel.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return err
	}

	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	err = channel.PublishWithContext(ctx, "", queue, true, false, amqp.Publishing{
		ContentType: "application/json",
		Headers:     headers,
		Body:        body,
	})

	return err
}
