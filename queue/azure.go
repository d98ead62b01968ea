package queue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

const (
	azureQueueNotFound      = "QueueNotFound"
	azureQueueAlreadyExists = "QueueAlreadyExists"
	azureMaxMessages        = 32
	azurePollInterval       = time.Second
	// receiptSeparator joins the message id and pop receipt; message ids are GUIDs.
	receiptSeparator = ":"
)

type azureQueue interface {
	URL() string
	GetProperties(ctx context.Context, o *azqueue.GetQueuePropertiesOptions) (azqueue.GetQueuePropertiesResponse, error)
	Create(ctx context.Context, o *azqueue.CreateOptions) (azqueue.CreateResponse, error)
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
	DequeueMessages(ctx context.Context, o *azqueue.DequeueMessagesOptions) (azqueue.DequeueMessagesResponse, error)
	DeleteMessage(ctx context.Context, messageID string, popReceipt string, o *azqueue.DeleteMessageOptions) (azqueue.DeleteMessageResponse, error)
}

// Azure implements Backend on Azure Storage queues. Storage queues carry no
// message attributes, so attributes passed to Send are dropped. Receive
// emulates a long wait by polling.
type Azure struct {
	newQueue     func(name string) (azureQueue, error)
	visibility   time.Duration
	pollInterval time.Duration

	mu     sync.Mutex
	queues map[string]azureQueue
}

// NewAzure creates an Azure Storage queue backend from a connection string.
func NewAzure(connStr string, visibility time.Duration) (*Azure, error) {
	if connStr == "" {
		return nil, errors.New("missing storage connection string")
	}
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	newQueue := func(name string) (azureQueue, error) {
		return azqueue.NewQueueClientFromConnectionString(connStr, name, &opts)
	}
	return newAzure(newQueue, visibility), nil
}

func newAzure(newQueue func(string) (azureQueue, error), visibility time.Duration) *Azure {
	return &Azure{
		newQueue:     newQueue,
		visibility:   visibility,
		pollInterval: azurePollInterval,
		queues:       make(map[string]azureQueue),
	}
}

func (a *Azure) Lookup(ctx context.Context, name string) (string, error) {
	q, err := a.newQueue(name)
	if err != nil {
		return "", err
	}
	if _, err := q.GetProperties(ctx, nil); err != nil {
		if isAzureCode(err, http.StatusNotFound, azureQueueNotFound) {
			return "", fmt.Errorf("%w: %s", ErrQueueNotFound, name)
		}
		return "", err
	}
	a.mu.Lock()
	a.queues[q.URL()] = q
	a.mu.Unlock()
	return q.URL(), nil
}

func (a *Azure) Create(ctx context.Context, name string) error {
	q, err := a.newQueue(name)
	if err != nil {
		return err
	}
	_, err = q.Create(ctx, nil)
	if err != nil && !isAzureCode(err, http.StatusConflict, azureQueueAlreadyExists) {
		return err
	}
	return nil
}

func (a *Azure) queue(address string) (azureQueue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	q, ok := a.queues[address]
	if !ok {
		return nil, fmt.Errorf("azure queue %s has not been resolved", address)
	}
	return q, nil
}

func (a *Azure) Send(ctx context.Context, address, body string, _ map[string]string) (string, error) {
	q, err := a.queue(address)
	if err != nil {
		return "", err
	}
	resp, err := q.EnqueueMessage(ctx, body, nil)
	if err != nil {
		return "", err
	}
	if len(resp.Messages) == 0 || resp.Messages[0].MessageID == nil {
		return "", nil
	}
	return *resp.Messages[0].MessageID, nil
}

func (a *Azure) Receive(ctx context.Context, address string, max int, wait time.Duration) ([]Message, error) {
	q, err := a.queue(address)
	if err != nil {
		return nil, err
	}
	if max > azureMaxMessages {
		max = azureMaxMessages
	}
	n := int32(max)
	opts := &azqueue.DequeueMessagesOptions{NumberOfMessages: &n}
	if a.visibility > 0 {
		vis := int32(a.visibility / time.Second)
		opts.VisibilityTimeout = &vis
	}
	deadline := time.Now().Add(wait)
	for {
		resp, err := q.DequeueMessages(ctx, opts)
		if err != nil {
			return nil, err
		}
		if len(resp.Messages) > 0 {
			msgs := make([]Message, 0, len(resp.Messages))
			for _, m := range resp.Messages {
				if m == nil || m.MessageID == nil || m.PopReceipt == nil {
					continue
				}
				body := ""
				if m.MessageText != nil {
					body = *m.MessageText
				}
				msgs = append(msgs, Message{
					ID:      *m.MessageID,
					Receipt: *m.MessageID + receiptSeparator + *m.PopReceipt,
					Body:    body,
				})
			}
			return msgs, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		delay := a.pollInterval
		if remaining < delay {
			delay = remaining
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (a *Azure) Delete(ctx context.Context, address, receipt string) error {
	q, err := a.queue(address)
	if err != nil {
		return err
	}
	id, pop, ok := strings.Cut(receipt, receiptSeparator)
	if !ok {
		return fmt.Errorf("malformed receipt %q", receipt)
	}
	_, err = q.DeleteMessage(ctx, id, pop, nil)
	return err
}

func isAzureCode(err error, status int, code string) bool {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return false
	}
	return respErr.StatusCode == status || respErr.ErrorCode == code
}
