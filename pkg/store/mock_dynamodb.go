package store

import (
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

// MockDynamoDBAPI implements the dynamodbiface.DynamoDBAPI interface for testing
type MockDynamoDBAPI struct {
	dynamodbiface.DynamoDBAPI
	mu     sync.RWMutex
	tables map[string]*MockTable
}

// MockTable represents a DynamoDB table in memory
type MockTable struct {
	Name        string
	Items       map[string]map[string]*dynamodb.AttributeValue
	BillingMode string
	TableStatus string
	KeySchema   []*dynamodb.KeySchemaElement
}

// NewMockDynamoDBAPI creates a new mock DynamoDB client
func NewMockDynamoDBAPI() *MockDynamoDBAPI {
	return &MockDynamoDBAPI{
		tables: make(map[string]*MockTable),
	}
}

// CreateTable creates a mock table
func (m *MockDynamoDBAPI) CreateTable(input *dynamodb.CreateTableInput) (*dynamodb.CreateTableOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tableName := aws.StringValue(input.TableName)
	if _, exists := m.tables[tableName]; exists {
		return nil, fmt.Errorf("table already exists: %s", tableName)
	}

	m.tables[tableName] = &MockTable{
		Name:        tableName,
		Items:       make(map[string]map[string]*dynamodb.AttributeValue),
		BillingMode: aws.StringValue(input.BillingMode),
		TableStatus: "ACTIVE",
		KeySchema:   input.KeySchema,
	}

	return &dynamodb.CreateTableOutput{
		TableDescription: &dynamodb.TableDescription{
			TableName:   input.TableName,
			TableStatus: aws.String("ACTIVE"),
		},
	}, nil
}

// DescribeTable describes a mock table
func (m *MockDynamoDBAPI) DescribeTable(input *dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tableName := aws.StringValue(input.TableName)
	table, exists := m.tables[tableName]
	if !exists {
		// Return AWS-style error for resource not found
		return nil, awserr.New(dynamodb.ErrCodeResourceNotFoundException, "Requested resource not found", nil)
	}

	return &dynamodb.DescribeTableOutput{
		Table: &dynamodb.TableDescription{
			TableName:   aws.String(table.Name),
			TableStatus: aws.String(table.TableStatus),
			KeySchema:   table.KeySchema,
			BillingModeSummary: &dynamodb.BillingModeSummary{
				BillingMode: aws.String(table.BillingMode),
			},
		},
	}, nil
}

// PutItem puts an item in a mock table
func (m *MockDynamoDBAPI) PutItem(input *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tableName := aws.StringValue(input.TableName)
	table, exists := m.tables[tableName]
	if !exists {
		return nil, fmt.Errorf("table not found: %s", tableName)
	}

	key := m.generateKey(table.KeySchema, input.Item)
	table.Items[key] = input.Item

	return &dynamodb.PutItemOutput{}, nil
}

// GetItem gets an item from a mock table
func (m *MockDynamoDBAPI) GetItem(input *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tableName := aws.StringValue(input.TableName)
	table, exists := m.tables[tableName]
	if !exists {
		return nil, fmt.Errorf("table not found: %s", tableName)
	}

	key := m.generateKey(table.KeySchema, input.Key)
	item, exists := table.Items[key]
	if !exists {
		return &dynamodb.GetItemOutput{}, nil
	}

	return &dynamodb.GetItemOutput{Item: item}, nil
}

// WaitUntilTableExists returns immediately; mock tables are always active
func (m *MockDynamoDBAPI) WaitUntilTableExists(input *dynamodb.DescribeTableInput) error {
	return nil
}

// generateKey builds a composite key string from the table's key schema
func (m *MockDynamoDBAPI) generateKey(keySchema []*dynamodb.KeySchemaElement, item map[string]*dynamodb.AttributeValue) string {
	key := ""
	for _, element := range keySchema {
		attrName := aws.StringValue(element.AttributeName)
		if attr, exists := item[attrName]; exists && attr.S != nil {
			key += aws.StringValue(attr.S) + "|"
		}
	}
	return key
}
