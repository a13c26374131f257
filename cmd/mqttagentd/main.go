// Command mqttagentd is a small demonstration binary wiring the agent and
// mqttnet packages together, in the same spirit as gonzalop-mq's own
// examples/*/main.go demos — it is not part of the module's public
// contract.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relaydog/mqttagent/agent"
	"github.com/relaydog/mqttagent/agentqueue"
	"github.com/relaydog/mqttagent/mqttnet"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:   "mqttagentd",
		Short: "Connect to an MQTT broker, publish one message, and print incoming publishes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v)
		},
	}
	root.Flags().String("server", "tcp://127.0.0.1:1883", "broker address (tcp://, ssl://)")
	root.Flags().String("client-id", "", "MQTT client id (generated if empty)")
	root.Flags().String("topic", "", "topic to publish to; if empty, subscribes and listens only")
	root.Flags().String("payload", "", "payload to publish, if --topic is set")
	root.Flags().String("subscribe", "#", "topic filter to subscribe to")
	root.Flags().Int("qos", 0, "QoS for publish/subscribe (0, 1, or 2)")
	root.Flags().Duration("keepalive", 30*time.Second, "MQTT keep-alive interval")

	v.BindPFlags(root.Flags())
	v.SetEnvPrefix("MQTTAGENTD")
	v.AutomaticEnv()
	v.SetConfigName("mqttagentd")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // config file is optional

	return root
}

func run(ctx context.Context, v *viper.Viper) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	client := mqttnet.New(
		mqttnet.WithLogger(logger),
		mqttnet.WithClientID(v.GetString("client-id")),
	)
	queue := agentqueue.New(32, false)
	a := agent.New(client, queue,
		agent.WithLogger(logger),
		agent.WithIncomingPublishCallback(func(pub *mqttnet.IncomingPublish, _ any) {
			logger.Info("received publish", "topic", pub.Topic, "qos", pub.QoS, "bytes", len(pub.Payload))
		}, nil),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Run(gctx) })

	connected := make(chan error, 1)
	err := a.EnqueueConnect(&agent.ConnectArgs{
		Server:       v.GetString("server"),
		ClientID:     v.GetString("client-id"),
		CleanSession: true,
		KeepAlive:    v.GetDuration("keepalive"),
	}, func(_ any, info agent.ReturnInfo) {
		if info.Status != agent.StatusSuccess {
			connected <- info.Status
			return
		}
		connected <- nil
	}, nil, 5*time.Second)
	if err != nil {
		return fmt.Errorf("mqttagentd: enqueue connect: %w", err)
	}

	select {
	case err := <-connected:
		if err != nil {
			return fmt.Errorf("mqttagentd: connect: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	qos := mqttnet.QoS(v.GetInt("qos"))
	if filter := v.GetString("subscribe"); filter != "" {
		done := make(chan agent.ReturnInfo, 1)
		if err := a.EnqueueSubscribe(&agent.SubscribeArgs{
			Topics: []string{filter},
			QoS:    []mqttnet.QoS{qos},
		}, func(_ any, info agent.ReturnInfo) { done <- info }, nil, 5*time.Second); err != nil {
			return fmt.Errorf("mqttagentd: enqueue subscribe: %w", err)
		}
		<-done
	}

	if topic := v.GetString("topic"); topic != "" {
		done := make(chan agent.ReturnInfo, 1)
		if err := a.EnqueuePublish(&agent.PublishArgs{
			Topic:   topic,
			Payload: []byte(v.GetString("payload")),
			QoS:     qos,
		}, func(_ any, info agent.ReturnInfo) { done <- info }, nil, 5*time.Second); err != nil {
			return fmt.Errorf("mqttagentd: enqueue publish: %w", err)
		}
		<-done
	}

	<-ctx.Done()
	_ = a.EnqueueDisconnect(nil, nil, time.Second)
	return g.Wait()
}
