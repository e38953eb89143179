/*
Copyright 2021 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package aws

import (
	"context"
	"regexp"
	"time"

	"github.com/gravitational/azfailaway/lib/constants"
	"github.com/gravitational/azfailaway/lib/defaults"
	"github.com/gravitational/azfailaway/lib/utils"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// Handler processes a single operation request payload
type Handler func(ctx context.Context, payload []byte) error

// ListenerConfig is the configuration of an operation request listener
type ListenerConfig struct {
	// Region is the AWS region. Used to create the queue client if it is not set
	Region string
	// Queue is a client for the AWS Simple Queue Service
	Queue Queue
	// Handler processes received operation requests
	Handler Handler
	// WaitTime is the long polling interval
	WaitTime time.Duration
	// VisibilityTimeout hides a message from other consumers while it is processed
	VisibilityTimeout time.Duration
	// RetryInterval is the pause after a failed receive
	RetryInterval time.Duration
}

// CheckAndSetDefaults checks and sets default values
func (cfg *ListenerConfig) CheckAndSetDefaults() error {
	if cfg.Handler == nil {
		return trace.BadParameter("missing parameter Handler")
	}
	if cfg.Queue == nil && cfg.Region == "" {
		return trace.BadParameter("missing parameter Region")
	}
	if cfg.WaitTime == 0 {
		cfg.WaitTime = defaults.QueueWaitTime
	}
	if cfg.VisibilityTimeout == 0 {
		cfg.VisibilityTimeout = defaults.QueueVisibilityTimeout
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = defaults.QueueRetryInterval
	}
	return nil
}

// Listener receives operation requests from an SQS queue
// and dispatches them to the handler one at a time
type Listener struct {
	ListenerConfig
	*log.Entry
}

// NewListener returns a new operation request listener
func NewListener(cfg ListenerConfig) (*Listener, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	if cfg.Queue == nil {
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(cfg.Region),
		})
		if err != nil {
			return nil, trace.Wrap(err)
		}
		cfg.Queue = sqs.New(sess)
	}
	return &Listener{
		ListenerConfig: cfg,
		Entry:          log.WithFields(log.Fields{trace.Component: constants.ComponentListener}),
	}, nil
}

// GetQueueURL returns the URL of the queue with the specified name
func (l *Listener) GetQueueURL(ctx context.Context, name string) (string, error) {
	expr, err := regexp.Compile(`[^a-zA-Z0-9\-_]`)
	if err != nil {
		return "", trace.Wrap(err)
	}
	// safeName is the name that is accepted by SQS naming
	safeName := expr.ReplaceAllString(name, "")
	out, err := l.Queue.GetQueueUrlWithContext(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(safeName),
	})
	if err != nil {
		return "", trace.Wrap(ConvertError(err))
	}
	return aws.StringValue(out.QueueUrl), nil
}

// ProcessEvents receives operation requests from the queue with the
// specified URL until the context is canceled
func (l *Listener) ProcessEvents(ctx context.Context, queueURL string) {
	logger := l.WithField("queue", queueURL)
	logger.Info("Start processing events.")
	for {
		out, err := l.Queue.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: aws.Int64(1),
			VisibilityTimeout:   aws.Int64(int64(l.VisibilityTimeout / time.Second)),
			WaitTimeSeconds:     aws.Int64(int64(l.WaitTime / time.Second)),
		})
		if err != nil {
			select {
			case <-ctx.Done():
				logger.Info("Stop processing events.")
				return
			default:
			}
			logger.WithError(err).Warn("Failed to receive message.")
			select {
			case <-time.After(l.RetryInterval):
			case <-ctx.Done():
				logger.Info("Stop processing events.")
				return
			}
			continue
		}
		for _, m := range out.Messages {
			if err := l.processMessage(ctx, queueURL, m); err != nil {
				logger.WithError(err).Warn("Failed to process message.")
				logger.Debug(trace.DebugReport(err))
			}
		}
		select {
		case <-ctx.Done():
			logger.Info("Stop processing events.")
			return
		default:
		}
	}
}

// processMessage hands the message body to the handler.
// The message is deleted unless the handler failed with a transient error
// in which case it becomes visible again after the visibility timeout
func (l *Listener) processMessage(ctx context.Context, queueURL string, m *sqs.Message) error {
	logger := l.WithField("message", aws.StringValue(m.MessageId))
	logger.Debugf("Got message body: %q.", aws.StringValue(m.Body))
	err := l.Handler(ctx, []byte(aws.StringValue(m.Body)))
	if err != nil && utils.IsTransientError(err) {
		logger.WithError(err).Info("Leaving message for redelivery.")
		return trace.Wrap(err)
	}
	_, deleteErr := l.Queue.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: m.ReceiptHandle,
	})
	if deleteErr != nil {
		return trace.NewAggregate(err, ConvertError(deleteErr))
	}
	return trace.Wrap(err)
}
