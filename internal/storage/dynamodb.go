package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ignite/batch-email/internal/domain"
)

// Template metadata item attributes.
const (
	templateKeyAttr    = "template_key"
	templateFieldsAttr = "fields"
)

// DynamoAPI is the subset of the DynamoDB client used here.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// TemplateTable reads and writes template metadata items keyed by
// "template_key".
type TemplateTable struct {
	client DynamoAPI
}

// NewTemplateTable wraps a DynamoDB client.
func NewTemplateTable(client DynamoAPI) *TemplateTable {
	return &TemplateTable{client: client}
}

// TemplateFields returns the comma-separated "fields" attribute of a
// template. A missing item or table wraps domain.ErrTemplateNotFound. The
// attribute may be a string, a string set or a list of strings.
func (t *TemplateTable) TemplateFields(ctx context.Context, table, key string) (string, error) {
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key: map[string]types.AttributeValue{
			templateKeyAttr: &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		var rnf *types.ResourceNotFoundException
		if errors.As(err, &rnf) {
			return "", fmt.Errorf("%w: %s/%s: %w", domain.ErrTemplateNotFound, table, key, err)
		}
		return "", fmt.Errorf("getting template %s from %s: %w", key, table, err)
	}
	if len(out.Item) == 0 {
		return "", fmt.Errorf("%w: %s/%s", domain.ErrTemplateNotFound, table, key)
	}

	switch v := out.Item[templateFieldsAttr].(type) {
	case nil:
		return "", nil
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberSS:
		return strings.Join(v.Value, ","), nil
	case *types.AttributeValueMemberL:
		var names []string
		for _, el := range v.Value {
			if s, ok := el.(*types.AttributeValueMemberS); ok {
				names = append(names, s.Value)
			}
		}
		return strings.Join(names, ","), nil
	default:
		return "", fmt.Errorf("template %s: unsupported %q attribute type %T", key, templateFieldsAttr, v)
	}
}

// PutTemplateFields creates or replaces a template's metadata item.
func (t *TemplateTable) PutTemplateFields(ctx context.Context, table string, meta domain.TemplateMetadata) error {
	item, err := attributevalue.MarshalMap(meta)
	if err != nil {
		return fmt.Errorf("marshaling template %s: %w", meta.TemplateKey, err)
	}
	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("putting template %s into %s: %w", meta.TemplateKey, table, err)
	}
	return nil
}

// DeleteTemplate removes a template's metadata item. Deleting an absent
// item succeeds.
func (t *TemplateTable) DeleteTemplate(ctx context.Context, table, key string) error {
	_, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(table),
		Key: map[string]types.AttributeValue{
			templateKeyAttr: &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting template %s from %s: %w", key, table, err)
	}
	return nil
}
