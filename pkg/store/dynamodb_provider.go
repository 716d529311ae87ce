package store

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

// DynamoDBProvider implements the Provider interface using DynamoDB
type DynamoDBProvider struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
}

// DynamoDBProviderConfig contains configuration for the DynamoDB provider
type DynamoDBProviderConfig struct {
	Region      string
	AccessKey   string
	SecretKey   string
	TablePrefix string
	Endpoint    string // Optional, for local DynamoDB
}

// NewDynamoDBProvider creates a new DynamoDB storage provider
func NewDynamoDBProvider(config DynamoDBProviderConfig) (*DynamoDBProvider, error) {
	// Create AWS session
	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}

	// Set credentials if provided
	if config.AccessKey != "" && config.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"",
		)
	}

	// Set endpoint for local DynamoDB if provided
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}

	// Create session
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &DynamoDBProvider{
		client:    dynamodb.New(sess),
		tableName: config.TablePrefix + "workflow_kv",
	}, nil
}

// Initialize creates the DynamoDB table if it doesn't exist
func (p *DynamoDBProvider) Initialize() error {
	// Check if table exists
	_, err := p.client.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: aws.String(p.tableName),
	})

	if err == nil {
		// Table exists
		return nil
	}

	// Check if error is "table not found"
	if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeResourceNotFoundException {
		// Create table
		_, err = p.client.CreateTable(&dynamodb.CreateTableInput{
			TableName: aws.String(p.tableName),
			AttributeDefinitions: []*dynamodb.AttributeDefinition{
				{
					AttributeName: aws.String("Namespace"),
					AttributeType: aws.String("S"),
				},
				{
					AttributeName: aws.String("Key"),
					AttributeType: aws.String("S"),
				},
			},
			KeySchema: []*dynamodb.KeySchemaElement{
				{
					AttributeName: aws.String("Namespace"),
					KeyType:       aws.String("HASH"),
				},
				{
					AttributeName: aws.String("Key"),
					KeyType:       aws.String("RANGE"),
				},
			},
			BillingMode: aws.String("PAY_PER_REQUEST"),
		})

		if err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}

		// Wait for table to be created
		err = p.client.WaitUntilTableExists(&dynamodb.DescribeTableInput{
			TableName: aws.String(p.tableName),
		})

		if err != nil {
			return fmt.Errorf("failed to wait for table creation: %w", err)
		}

		return nil
	}

	return fmt.Errorf("failed to check if table exists: %w", err)
}

// Close cleans up resources
func (p *DynamoDBProvider) Close() error {
	// Nothing to close for DynamoDB
	return nil
}

// Get retrieves the value stored under (namespace, key)
func (p *DynamoDBProvider) Get(namespace, key string) ([]byte, error) {
	result, err := p.client.GetItem(&dynamodb.GetItemInput{
		TableName: aws.String(p.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"Namespace": {S: aws.String(namespace)},
			"Key":       {S: aws.String(key)},
		},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	// Check if item exists
	if result.Item == nil {
		return nil, ErrKeyNotFound
	}

	value, ok := result.Item["Value"]
	if !ok || value.B == nil {
		return nil, ErrKeyNotFound
	}

	return value.B, nil
}

// Put stores a value under (namespace, key)
func (p *DynamoDBProvider) Put(namespace, key string, value []byte) error {
	_, err := p.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(p.tableName),
		Item: map[string]*dynamodb.AttributeValue{
			"Namespace": {S: aws.String(namespace)},
			"Key":       {S: aws.String(key)},
			"Value":     {B: value},
		},
	})

	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}

	return nil
}
