package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const sourceMQTT = "mqtt"

type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
}

// MQTTSubscriber records every message published on a topic. The
// subscription is renewed on each (re)connect.
type MQTTSubscriber struct {
	client  mqtt.Client
	topic   string
	qos     byte
	rec     Recorder
	log     *slog.Logger
	timeout time.Duration
}

func NewMQTTSubscriber(cfg MQTTConfig, rec Recorder, log *slog.Logger) (*MQTTSubscriber, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker must not be empty")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("mqtt topic must not be empty")
	}
	s := &MQTTSubscriber{
		topic:   cfg.Topic,
		qos:     cfg.QoS,
		rec:     rec,
		log:     log.With(slog.String("source", sourceMQTT), slog.String("topic", cfg.Topic)),
		timeout: 5 * time.Second,
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.log.Warn("connection_lost", slog.Any("err", err))
		})
	s.client = mqtt.NewClient(opts)
	return s, nil
}

// Run connects, subscribes and blocks until ctx is done.
func (s *MQTTSubscriber) Run(ctx context.Context) error {
	token := s.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
	case <-ctx.Done():
		s.client.Disconnect(250)
		return nil
	}

	<-ctx.Done()
	if t := s.client.Unsubscribe(s.topic); t.WaitTimeout(time.Second) && t.Error() != nil {
		s.log.Warn("unsubscribe_err", slog.Any("err", t.Error()))
	}
	s.client.Disconnect(250)
	s.log.Info("subscriber_stop")
	return nil
}

func (s *MQTTSubscriber) onConnect(c mqtt.Client) {
	token := c.Subscribe(s.topic, s.qos, s.onMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		s.log.Error("subscribe_err", slog.Any("err", err))
		return
	}
	s.log.Info("subscribed")
}

func (s *MQTTSubscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := handle(ctx, s.rec, sourceMQTT, msg.Payload(), s.log); err != nil {
		s.log.Error("handle_err", slog.Any("err", err), slog.Int("message_id", int(msg.MessageID())))
	}
}
