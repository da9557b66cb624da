package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/gofrs/uuid/v5"

	"github.com/bai-labs/figmaproxy/models"
)

type DynamoIdentityStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoIdentityStore(ctx context.Context, devMode bool, dynamodbEndpoint string, tableName string) (*DynamoIdentityStore, error) {
	client, err := newDynamoDBClient(ctx, devMode, dynamodbEndpoint)
	if err != nil {
		return nil, err
	}

	tables, err := getTables(client, ctx)
	if err != nil {
		return nil, err
	}

	foundTable := false
	for _, table := range tables {
		if table == tableName {
			foundTable = true
			break
		}
	}
	if !foundTable {
		return nil, fmt.Errorf("given table name '%s' not found in dynamodb", tableName)
	}

	return &DynamoIdentityStore{client: client, tableName: tableName}, nil
}

// UpsertUser writes the user in a single UpdateItem. Tokens are always
// overwritten; Id, Email, Name and Created only take effect when the
// item does not exist yet, so repeat logins keep the original identity.
func (dynamoStore *DynamoIdentityStore) UpsertUser(ctx context.Context, user models.User) (models.User, error) {
	userId, err := uuid.NewV4()
	if err != nil {
		return models.User{}, err
	}

	key := map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userPK(user.FigmaId)},
		"SK": &types.AttributeValueMemberS{Value: userSK},
	}

	resp, err := dynamoStore.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(dynamoStore.tableName),
		Key:       key,
		UpdateExpression: aws.String(
			"SET AccessToken = :at, RefreshToken = :rt, FigmaId = :fid, " +
				"Id = if_not_exists(Id, :id), Email = if_not_exists(Email, :email), " +
				"#n = if_not_exists(#n, :name), Created = if_not_exists(Created, :created)"),
		ExpressionAttributeNames: map[string]string{
			"#n": "Name",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":at":      &types.AttributeValueMemberS{Value: user.AccessToken},
			":rt":      &types.AttributeValueMemberS{Value: user.RefreshToken},
			":fid":     &types.AttributeValueMemberS{Value: user.FigmaId},
			":id":      &types.AttributeValueMemberS{Value: userId.String()},
			":email":   &types.AttributeValueMemberS{Value: user.Email},
			":name":    &types.AttributeValueMemberS{Value: user.Name},
			":created": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix())},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return models.User{}, fmt.Errorf("UpdateItem failed: %w", err)
	}

	var du dynamoUser
	if err := attributevalue.UnmarshalMap(resp.Attributes, &du); err != nil {
		return models.User{}, fmt.Errorf("failed to unmarshal upserted user: %w", err)
	}

	return userFromDynamo(du), nil
}

func (dynamoStore *DynamoIdentityStore) GetUser(ctx context.Context, figmaId string) (models.User, error) {
	du, err := getItem[dynamoUser](dynamoStore, ctx, userPK(figmaId), userSK)
	if err != nil {
		return models.User{}, err
	}

	return userFromDynamo(du), nil
}
