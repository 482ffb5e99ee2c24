package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/garyjia/erp-approvals/internal/application/port"
	"github.com/garyjia/erp-approvals/internal/domain/event"
)

const defaultTableName = "approval_history_archive"

// Config holds DynamoDB archive configuration
type Config struct {
	Region          string
	TableName       string
	Endpoint        string // optional; e.g. http://localhost:8000 for DynamoDB Local
	AccessKeyID     string
	SecretAccessKey string
}

// putItemAPI is the slice of the DynamoDB client the archive uses
type putItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// archiveItem is one approval event as stored in DynamoDB.
//
// Table requirements:
//   - PK: pk (string), the company and document the event is about
//   - SK: sk (string), timestamp then event id, so a Query returns the document timeline
type archiveItem struct {
	PK            string `dynamodbav:"pk"`
	SK            string `dynamodbav:"sk"`
	EventID       string `dynamodbav:"event_id"`
	EventType     string `dynamodbav:"event_type"`
	RequestID     string `dynamodbav:"request_id,omitempty"`
	CompanyID     string `dynamodbav:"company_id"`
	DocumentType  string `dynamodbav:"document_type"`
	DocumentID    string `dynamodbav:"document_id"`
	ActorID       string `dynamodbav:"actor_id"`
	Payload       string `dynamodbav:"payload"`
	CorrelationID string `dynamodbav:"correlation_id"`
	Timestamp     string `dynamodbav:"timestamp"`
}

// DynamoArchive appends approval events to a DynamoDB table
type DynamoArchive struct {
	ddb       putItemAPI
	tableName string
	logger    *zap.Logger
}

// NewDynamoArchive builds the AWS client from cfg.
// Static credentials are used when both keys are set, otherwise the default chain.
func NewDynamoArchive(ctx context.Context, cfg Config, logger *zap.Logger) (*DynamoArchive, error) {
	loadOpts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	logger.Info("DynamoDB archive configured",
		zap.String("table", cfg.TableName),
		zap.String("region", awsCfg.Region),
		zap.String("endpoint", cfg.Endpoint))

	return newDynamoArchive(client, cfg.TableName, logger), nil
}

func newDynamoArchive(ddb putItemAPI, tableName string, logger *zap.Logger) *DynamoArchive {
	if tableName == "" {
		tableName = defaultTableName
	}
	return &DynamoArchive{
		ddb:       ddb,
		tableName: tableName,
		logger:    logger,
	}
}

// Archive stores evt once; archiving the same event again is a no-op
func (a *DynamoArchive) Archive(ctx context.Context, evt *event.Event) error {
	if evt == nil {
		return fmt.Errorf("event cannot be nil")
	}

	item, err := toArchiveItem(evt)
	if err != nil {
		return err
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal archive item: %w", err)
	}

	_, err = a.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(a.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(#pk) AND attribute_not_exists(#sk)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": "pk",
			"#sk": "sk",
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			a.logger.Info("Event already archived", zap.String("event_id", evt.ID))
			return nil
		}
		a.logger.Error("Failed to archive event",
			zap.String("event_id", evt.ID),
			zap.String("table", a.tableName),
			zap.Error(err))
		return fmt.Errorf("failed to archive event: %w", err)
	}

	return nil
}

func toArchiveItem(evt *event.Event) (archiveItem, error) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return archiveItem{}, fmt.Errorf("failed to encode event payload: %w", err)
	}

	ts := evt.Timestamp.UTC().Format(time.RFC3339Nano)
	return archiveItem{
		PK:            documentKey(evt.CompanyID, evt.DocumentType, evt.DocumentID),
		SK:            ts + "#" + evt.ID,
		EventID:       evt.ID,
		EventType:     evt.Type.String(),
		RequestID:     evt.RequestID,
		CompanyID:     evt.CompanyID,
		DocumentType:  evt.DocumentType,
		DocumentID:    evt.DocumentID,
		ActorID:       evt.ActorID,
		Payload:       string(payload),
		CorrelationID: evt.CorrelationID,
		Timestamp:     ts,
	}, nil
}

func documentKey(companyID, documentType, documentID string) string {
	return companyID + "#" + documentType + "#" + documentID
}

// Verify interface compliance
var _ port.HistoryArchive = (*DynamoArchive)(nil)
