// Package notify announces completed AI responses on an AWS SNS topic so other
// CRM services can react without polling the response store.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	apperrors "crm-ai-orchestrator/internal/common/errors"
	"crm-ai-orchestrator/internal/common/logger"
	"crm-ai-orchestrator/internal/orchestrator"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

const EventResponseReady = "ai.response.ready"

// Publisher is the part of *sns.Client the notifier uses.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// NewSNSClient loads the default AWS credential chain for region. A non-empty
// endpoint overrides the service URL (localstack and similar).
func NewSNSClient(ctx context.Context, region, endpoint string) (*sns.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sns.NewFromConfig(cfg, func(o *sns.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

type SNSNotifier struct {
	client   Publisher
	topicARN string
	timeout  time.Duration
	logger   logger.Logger
}

func NewSNSNotifier(client Publisher, topicARN string, timeout time.Duration, log logger.Logger) *SNSNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SNSNotifier{
		client:   client,
		topicARN: topicARN,
		timeout:  timeout,
		logger:   log.With(map[string]interface{}{"component": "sns-notifier"}),
	}
}

type responseEvent struct {
	Event          string    `json:"event"`
	ResponseID     string    `json:"responseId"`
	RequestID      string    `json:"requestId"`
	RequestType    string    `json:"requestType"`
	ModelID        string    `json:"modelId"`
	Confidence     float64   `json:"confidence"`
	ProcessingTime int64     `json:"processingTime"`
	Timestamp      time.Time `json:"timestamp"`
}

// Notify publishes a summary of resp. The result payload itself stays in the
// response store; subscribers fetch it by request ID.
func (n *SNSNotifier) Notify(ctx context.Context, resp *orchestrator.AIResponse) error {
	body, err := json.Marshal(responseEvent{
		Event:          EventResponseReady,
		ResponseID:     resp.ID,
		RequestID:      resp.RequestID,
		RequestType:    string(resp.Type),
		ModelID:        resp.ModelID,
		Confidence:     resp.Confidence,
		ProcessingTime: resp.ProcessingTime,
		Timestamp:      resp.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("encode response event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	out, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event":       stringAttribute(EventResponseReady),
			"requestType": stringAttribute(string(resp.Type)),
			"modelId":     stringAttribute(resp.ModelID),
			"confidence":  {DataType: aws.String("Number"), StringValue: aws.String(strconv.FormatFloat(resp.Confidence, 'f', 4, 64))},
		},
	})
	if err != nil {
		return apperrors.NewNotificationFailedError(resp.RequestID, err)
	}

	n.logger.Debug("response notification published", map[string]interface{}{
		"requestId": resp.RequestID,
		"messageId": aws.ToString(out.MessageId),
	})
	return nil
}

func stringAttribute(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}
