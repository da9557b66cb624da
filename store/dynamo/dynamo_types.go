package dynamo

import "github.com/bai-labs/figmaproxy/models"

type dynamoUser struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	Id           string `dynamodbav:"Id"`
	FigmaId      string `dynamodbav:"FigmaId"`
	Email        string `dynamodbav:"Email"`
	Name         string `dynamodbav:"Name"`
	AccessToken  string `dynamodbav:"AccessToken"`
	RefreshToken string `dynamodbav:"RefreshToken"`
	Created      int64  `dynamodbav:"Created"`
}

func userPK(figmaId string) string {
	return "USER#" + figmaId
}

const userSK = "PROFILE"

// Map Dynamo -> domain User
func userFromDynamo(du dynamoUser) models.User {
	return models.User{
		Id:           du.Id,
		FigmaId:      du.FigmaId,
		Email:        du.Email,
		Name:         du.Name,
		AccessToken:  du.AccessToken,
		RefreshToken: du.RefreshToken,
		Created:      du.Created,
	}
}
