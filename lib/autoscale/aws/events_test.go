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
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/gravitational/trace"
	"gopkg.in/check.v1"
)

type ListenerSuite struct{}

var _ = check.Suite(&ListenerSuite{})

func (s *ListenerSuite) TestRequiresHandler(c *check.C) {
	_, err := NewListener(ListenerConfig{Queue: &mockQueue{}})
	c.Assert(trace.IsBadParameter(err), check.Equals, true)
}

func (s *ListenerSuite) TestSanitizesQueueName(c *check.C) {
	queue := &mockQueue{}
	listener, err := NewListener(ListenerConfig{Queue: queue, Handler: nopHandler})
	c.Assert(err, check.IsNil)
	url, err := listener.GetQueueURL(context.TODO(), "az fail.away")
	c.Assert(err, check.IsNil)
	c.Assert(url, check.Equals, "https://sqs.us-east-2.amazonaws.com/123456789012/azfailaway")
}

func (s *ListenerSuite) TestProcessesAndDeletesMessages(c *check.C) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue := &mockQueue{
		messages: []string{`{"operation":"Remove","zoneId":"use2-az1"}`, `{"operation":"Fail"}`},
		onEmpty:  cancel,
	}
	var payloads []string
	listener, err := NewListener(ListenerConfig{
		Queue: queue,
		Handler: func(ctx context.Context, payload []byte) error {
			payloads = append(payloads, string(payload))
			if len(payloads) == 2 {
				return trace.BadParameter("unsupported operation")
			}
			return nil
		},
	})
	c.Assert(err, check.IsNil)

	listener.ProcessEvents(ctx, testQueueURL)
	c.Assert(payloads, check.DeepEquals, queue.sent)
	// invalid requests are never redelivered
	c.Assert(queue.deleted, check.DeepEquals, []string{"receipt-0", "receipt-1"})
}

func (s *ListenerSuite) TestKeepsMessagesOnTransientErrors(c *check.C) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue := &mockQueue{
		messages: []string{`{"operation":"Restore","zoneId":"use2-az1"}`},
		onEmpty:  cancel,
	}
	listener, err := NewListener(ListenerConfig{
		Queue: queue,
		Handler: func(ctx context.Context, payload []byte) error {
			return trace.ConnectionProblem(nil, "table is unavailable")
		},
	})
	c.Assert(err, check.IsNil)

	listener.ProcessEvents(ctx, testQueueURL)
	c.Assert(queue.deleted, check.HasLen, 0)
}

func (s *ListenerSuite) TestRetriesReceiveErrors(c *check.C) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue := &mockQueue{
		receiveErrs: []error{awserr.New("ServiceUnavailable", "unavailable", nil)},
		messages:    []string{`{"operation":"Remove","zoneId":"use2-az1"}`},
		onEmpty:     cancel,
	}
	var calls int
	listener, err := NewListener(ListenerConfig{
		Queue: queue,
		Handler: func(ctx context.Context, payload []byte) error {
			calls++
			return nil
		},
		RetryInterval: time.Millisecond,
	})
	c.Assert(err, check.IsNil)

	listener.ProcessEvents(ctx, testQueueURL)
	c.Assert(calls, check.Equals, 1)
	c.Assert(queue.deleted, check.DeepEquals, []string{"receipt-0"})
}

func nopHandler(context.Context, []byte) error { return nil }

const testQueueURL = "https://sqs.us-east-2.amazonaws.com/123456789012/azfailaway"

// mockQueue delivers messages one at a time and invokes onEmpty
// once all messages have been received
type mockQueue struct {
	sync.Mutex
	messages    []string
	sent        []string
	deleted     []string
	receiveErrs []error
	onEmpty     func()
}

func (m *mockQueue) GetQueueUrlWithContext(ctx aws.Context, input *sqs.GetQueueUrlInput, opts ...request.Option) (*sqs.GetQueueUrlOutput, error) {
	return &sqs.GetQueueUrlOutput{
		QueueUrl: aws.String("https://sqs.us-east-2.amazonaws.com/123456789012/" + aws.StringValue(input.QueueName)),
	}, nil
}

func (m *mockQueue) ReceiveMessageWithContext(ctx aws.Context, input *sqs.ReceiveMessageInput, opts ...request.Option) (*sqs.ReceiveMessageOutput, error) {
	m.Lock()
	defer m.Unlock()
	if len(m.receiveErrs) != 0 {
		err := m.receiveErrs[0]
		m.receiveErrs = m.receiveErrs[1:]
		return nil, err
	}
	if len(m.messages) == 0 {
		if m.onEmpty != nil {
			m.onEmpty()
		}
		return &sqs.ReceiveMessageOutput{}, nil
	}
	body := m.messages[0]
	m.messages = m.messages[1:]
	receipt := "receipt-" + string(rune('0'+len(m.sent)))
	m.sent = append(m.sent, body)
	return &sqs.ReceiveMessageOutput{
		Messages: []*sqs.Message{{
			MessageId:     aws.String(receipt),
			Body:          aws.String(body),
			ReceiptHandle: aws.String(receipt),
		}},
	}, nil
}

func (m *mockQueue) DeleteMessageWithContext(ctx aws.Context, input *sqs.DeleteMessageInput, opts ...request.Option) (*sqs.DeleteMessageOutput, error) {
	m.Lock()
	defer m.Unlock()
	m.deleted = append(m.deleted, aws.StringValue(input.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}
