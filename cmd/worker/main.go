// The worker drains the domain-event queue (chat completions,
// data-version creation) so events don't pile up when no downstream
// consumer is attached. Handling is log-only for now; failures are
// nacked without requeue and land in the DLQ.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/datagent-dev/datagent/internal/config"
	"github.com/datagent-dev/datagent/internal/events"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()
	if cfg.RabbitURL == "" {
		log.Fatal("RABBIT_URL is required for the event worker")
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.RabbitQueue + ".dlq",
	}); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("event worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	deliveries := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range deliveries {
				var ev events.Event
				if err := json.Unmarshal(d.Body, &ev); err != nil || ev.Type == "" {
					log.Printf("worker=%d bad event: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				switch ev.Type {
				case events.TypeChatCompleted:
					log.Printf("worker=%d chat completed: session=%s user=%s payload=%v", workerID, ev.SessionID, ev.UserID, ev.Payload)
				case events.TypeDataVersionCreated:
					log.Printf("worker=%d data version created: session=%s payload=%v", workerID, ev.SessionID, ev.Payload)
				default:
					log.Printf("worker=%d unknown event type %q", workerID, ev.Type)
				}
				_ = d.Ack(false)
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			close(deliveries)
			wg.Wait()
			log.Println("event worker stopped")
			return
		case d, ok := <-msgs:
			if !ok {
				close(deliveries)
				wg.Wait()
				log.Fatal("rabbit delivery channel closed")
			}
			deliveries <- d
		}
	}
}
