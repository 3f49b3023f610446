package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/tidwall/gjson"
)

// SecretValue reads a secret. When the secret is a JSON object and key is
// present, the value at key is returned instead of the whole string.
func SecretValue(ctx context.Context, cfg aws.Config, arn, key string) (string, error) {
	client := secretsmanager.NewFromConfig(cfg)
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(arn),
	})
	if err != nil {
		return "", err
	}
	return ExtractSecret(aws.ToString(out.SecretString), key), nil
}

func ExtractSecret(raw, key string) string {
	if key != "" && gjson.Valid(raw) {
		if v := gjson.Get(raw, key); v.Exists() {
			return v.String()
		}
	}
	return raw
}
