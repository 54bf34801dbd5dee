package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/chronoplan/chronoplan/core/model"
	"github.com/chronoplan/chronoplan/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Enabled         bool        `json:"enabled"`
	Broker          string      `json:"broker"`
	ClientID        string      `json:"client_id"`
	Username        string      `json:"username"`
	Password        string      `json:"password"`
	ScheduleTopic   string      `json:"schedule_topic"`
	CompletionTopic string      `json:"completion_topic"`
	UseTLS          bool        `json:"use_tls"`
	ClientCert      string      `json:"client_cert"`
	ClientKey       string      `json:"client_key"`
	CABundle        string      `json:"ca_bundle"`
	QoS             byte        `json:"qos"`
	MaxRetries      int         `json:"max_retries"`
	BackoffMS       int         `json:"backoff_ms"`
	TLSConfig       *tls.Config `json:"-"`
}

// SetDefaults applies topic and retry defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "chronoplan"
	}
	if c.ScheduleTopic == "" {
		c.ScheduleTopic = "chronoplan/schedule"
	}
	if c.CompletionTopic == "" {
		c.CompletionTopic = "chronoplan/completions"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Completion is the payload reported when a task finishes with an actual
// duration that may differ from the estimate.
type Completion struct {
	TaskID        string `json:"task_id"`
	ActualMinutes int    `json:"actual_minutes"`
	Timestamp     int64  `json:"timestamp"`
}

// SchedulePayload is the message published after each scheduling run.
type SchedulePayload struct {
	RunID           string                `json:"run_id"`
	Status          string                `json:"status"`
	MakespanMinutes float64               `json:"makespan_minutes"`
	Tasks           []model.ScheduledTask `json:"tasks"`
	Timestamp       int64                 `json:"timestamp"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient publishes schedules and receives task completion events over
// MQTT using Eclipse Paho.
type PahoClient struct {
	cli             pahoClient
	scheduleTopic   string
	completionTopic string
	qos             byte
	maxRetries      int
	backoff         time.Duration
	logger          logger.Logger
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		scheduleTopic:   cfg.ScheduleTopic,
		completionTopic: cfg.CompletionTopic,
		qos:             cfg.QoS,
		maxRetries:      cfg.MaxRetries,
		backoff:         time.Duration(cfg.BackoffMS) * time.Millisecond,
		logger:          log,
	}

	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// PublishSchedule publishes the schedule payload with retry and exponential
// backoff.
func (p *PahoClient) PublishSchedule(payload SchedulePayload) error {
	if payload.Timestamp == 0 {
		payload.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(p.scheduleTopic, p.qos, false, data)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Infof("published schedule %s to %s", payload.RunID, p.scheduleTopic)
			return nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		time.Sleep(p.backoff * time.Duration(1<<attempt))
	}
	return publishErr
}

// SubscribeCompletions registers a handler for task completion events.
// Malformed payloads are logged and dropped.
func (p *PahoClient) SubscribeCompletions(handler func(Completion)) error {
	token := p.cli.Subscribe(p.completionTopic, p.qos, func(_ paho.Client, msg paho.Message) {
		var ev Completion
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			p.logger.Errorf("failed to decode completion: %v", err)
			return
		}
		if ev.TaskID == "" {
			p.logger.Warnf("completion without task_id ignored")
			return
		}
		handler(ev)
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	p.logger.Infof("subscribed to %s", p.completionTopic)
	return nil
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
