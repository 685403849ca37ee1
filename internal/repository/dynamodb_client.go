package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"fallback-chat/internal/domain"
)

const (
	skPrefixEvt = "EVT#"
	skSummary   = "SUMMARY#"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// EventReader is what the events CLI needs from the ledger.
type EventReader interface {
	ListEvents(ctx context.Context, requestID string) ([]domain.GenerationEvent, error)
	GetSummary(ctx context.Context, requestID string) (domain.RequestSummary, bool, error)
}

// Client wraps a DynamoDB table holding the generation event ledger.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// reqPK returns the DynamoDB partition key for a generation request.
func reqPK(requestID string) string {
	return "REQ#" + requestID
}

// evtSK orders events chronologically within a request; the kind suffix keeps
// two events with the same timestamp distinct.
func evtSK(evt domain.GenerationEvent) string {
	return skPrefixEvt + evt.OccurredAt.UTC().Format(time.RFC3339Nano) + "#" + string(evt.Kind)
}

// ttlValue returns a Unix timestamp 30 days in the future.
func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

// Observe stores evt. It lets the ledger be registered as a generation observer.
func (c *Client) Observe(ctx context.Context, evt domain.GenerationEvent) error {
	return c.RecordEvent(ctx, evt)
}

// RecordEvent persists one event. Terminal events also replace the request
// summary, in the same transaction.
func (c *Client) RecordEvent(ctx context.Context, evt domain.GenerationEvent) error {
	if strings.TrimSpace(evt.RequestID) == "" {
		return errors.New("repository: RecordEvent: request id is required")
	}
	if evt.Kind == "" {
		return errors.New("repository: RecordEvent: kind is required")
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = c.now().UTC()
	}
	ttl := c.ttlValue()

	if !evt.Kind.Terminal() {
		_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(c.tableName),
			Item:                eventItem(evt, ttl),
			ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
		})
		if err != nil {
			return fmt.Errorf("repository: RecordEvent: %w", err)
		}
		return nil
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                eventItem(evt, ttl),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item:      summaryItem(evt, ttl),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: RecordEvent: %w", err)
	}
	return nil
}

// ListEvents returns all events of a request in chronological order.
func (c *Client) ListEvents(ctx context.Context, requestID string) ([]domain.GenerationEvent, error) {
	if strings.TrimSpace(requestID) == "" {
		return nil, errors.New("repository: ListEvents: request id is required")
	}
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: reqPK(requestID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixEvt},
		},
		ScanIndexForward: aws.Bool(true),
	}

	var events []domain.GenerationEvent
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: ListEvents query: %w", err)
		}
		for _, item := range out.Items {
			evt, err := itemToEvent(item)
			if err != nil {
				return nil, fmt.Errorf("repository: ListEvents unmarshal: %w", err)
			}
			events = append(events, evt)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return events, nil
}

// GetSummary returns the stored outcome of a request. The bool is false when
// the request has not finished (or never existed).
func (c *Client) GetSummary(ctx context.Context, requestID string) (domain.RequestSummary, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: reqPK(requestID)},
			"SK": &types.AttributeValueMemberS{Value: skSummary},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.RequestSummary{}, false, fmt.Errorf("repository: GetSummary get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.RequestSummary{}, false, nil
	}
	summary, err := itemToSummary(out.Item)
	if err != nil {
		return domain.RequestSummary{}, false, fmt.Errorf("repository: GetSummary decode: %w", err)
	}
	return summary, true, nil
}

func eventItem(evt domain.GenerationEvent, ttl int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: reqPK(evt.RequestID)},
		"SK":         &types.AttributeValueMemberS{Value: evtSK(evt)},
		"requestId":  &types.AttributeValueMemberS{Value: evt.RequestID},
		"kind":       &types.AttributeValueMemberS{Value: string(evt.Kind)},
		"model":      &types.AttributeValueMemberS{Value: evt.Model},
		"reason":     &types.AttributeValueMemberS{Value: evt.Reason},
		"status":     &types.AttributeValueMemberN{Value: strconv.Itoa(evt.StatusCode)},
		"latencyMs":  &types.AttributeValueMemberN{Value: strconv.FormatInt(evt.Latency.Milliseconds(), 10)},
		"occurredAt": &types.AttributeValueMemberS{Value: evt.OccurredAt.UTC().Format(time.RFC3339Nano)},
		"ttl":        &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
}

func summaryItem(evt domain.GenerationEvent, ttl int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: reqPK(evt.RequestID)},
		"SK":        &types.AttributeValueMemberS{Value: skSummary},
		"requestId": &types.AttributeValueMemberS{Value: evt.RequestID},
		"outcome":   &types.AttributeValueMemberS{Value: string(evt.Kind)},
		"model":     &types.AttributeValueMemberS{Value: evt.Model},
		"reason":    &types.AttributeValueMemberS{Value: evt.Reason},
		"updatedAt": &types.AttributeValueMemberS{Value: evt.OccurredAt.UTC().Format(time.RFC3339Nano)},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
}

// itemToEvent converts a DynamoDB attribute map to a GenerationEvent.
func itemToEvent(item map[string]types.AttributeValue) (domain.GenerationEvent, error) {
	requestID, err := strAttr(item, "requestId")
	if err != nil {
		return domain.GenerationEvent{}, err
	}
	kind, err := strAttr(item, "kind")
	if err != nil {
		return domain.GenerationEvent{}, err
	}
	occurredAt, err := timeAttr(item, "occurredAt")
	if err != nil {
		return domain.GenerationEvent{}, err
	}
	model, _ := strAttr(item, "model")   // allow empty
	reason, _ := strAttr(item, "reason") // allow empty
	status, _ := intAttr(item, "status")
	latencyMs, _ := intAttr(item, "latencyMs")

	return domain.GenerationEvent{
		RequestID:  requestID,
		Kind:       domain.EventKind(kind),
		Model:      model,
		Reason:     reason,
		StatusCode: status,
		Latency:    time.Duration(latencyMs) * time.Millisecond,
		OccurredAt: occurredAt,
	}, nil
}

func itemToSummary(item map[string]types.AttributeValue) (domain.RequestSummary, error) {
	requestID, err := strAttr(item, "requestId")
	if err != nil {
		return domain.RequestSummary{}, err
	}
	outcome, err := strAttr(item, "outcome")
	if err != nil {
		return domain.RequestSummary{}, err
	}
	updatedAt, err := timeAttr(item, "updatedAt")
	if err != nil {
		return domain.RequestSummary{}, err
	}
	model, _ := strAttr(item, "model")
	reason, _ := strAttr(item, "reason")
	return domain.RequestSummary{
		RequestID: requestID,
		Outcome:   domain.EventKind(outcome),
		Model:     model,
		Reason:    reason,
		UpdatedAt: updatedAt,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

func timeAttr(item map[string]types.AttributeValue, key string) (time.Time, error) {
	s, err := strAttr(item, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return t, nil
}
