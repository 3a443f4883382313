package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Aegis/internal/domain/webhook"
	"github.com/NordCoder/Aegis/internal/obs"
	"github.com/NordCoder/Aegis/internal/repository/kafka"
)

func main() {
	emit := flag.String("emit", "", "publish one user event of this type after the topic is ready")
	siteID := flag.Int64("site", 0, "site id of the emitted event")
	userID := flag.Int64("user", 0, "user id of the emitted event")
	email := flag.String("email", "", "email of the emitted event")
	role := flag.String("role", "user", "aegis role of the emitted event")
	flag.Parse()

	brokers := strings.Split(env("KAFKA_BROKERS", "kafka:9092"), ",")
	topic := env("KAFKA_TOPIC", "aegis.user-events")

	l, err := obs.NewLogger(obs.LogConfig{Level: env("LOG_LEVEL", "info"), App: "aegis/kafka-init"})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	tc := kafka.TopicSpec{
		Name:              topic,
		NumPartitions:     envInt("KAFKA_PARTITIONS", 1),
		ReplicationFactor: envInt("KAFKA_RF", 1),
		MaxWait:           30 * time.Second,
	}
	if err := kafka.EnsureTopic(ctx, brokers, tc, l); err != nil {
		l.Fatal("ensure topic", zap.String("topic", topic), zap.Error(err))
	}
	l.Info("topic ready", zap.String("topic", topic))

	if *emit == "" {
		return
	}
	prod := kafka.NewProducer(brokers, topic, l)
	defer func() { _ = prod.Close() }()

	ev := webhook.UserEvent{
		EventType: *emit,
		SiteID:    *siteID,
		UserID:    *userID,
		Email:     *email,
		AegisRole: *role,
		At:        time.Now().Unix(),
	}
	if err := kafka.NewUserEvents(prod, l).PublishUserEvent(ctx, ev); err != nil {
		l.Fatal("publish user event", zap.Error(err))
	}
	l.Info("user event published", zap.String("event_type", ev.EventType), zap.Int64("site_id", ev.SiteID))
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, _ := strconv.Atoi(v); n > 0 {
			return n
		}
	}
	return def
}
