package lib

import (
	"context"
	"log"
	appconfig "tourledger/src/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// LoadAWSConfig loads the default AWS configuration. When IAMRoleArn is set the
// returned config carries credentials for the assumed role.
func LoadAWSConfig(ctx context.Context, c appconfig.AWSConfig) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(c.Region))
	if err != nil {
		log.Printf("Error loading default config: %s\n", err.Error())
		return aws.Config{}, err
	}
	if c.IAMRoleArn == "" {
		return cfg, nil
	}

	stsClient := sts.NewFromConfig(cfg)
	output, err := stsClient.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(c.IAMRoleArn),
		RoleSessionName: aws.String("tourledger-api"),
	})
	if err != nil {
		log.Printf("Error configuring STS client: %s\n", err.Error())
		return aws.Config{}, err
	}
	creds := output.Credentials
	cfg, err = config.LoadDefaultConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(*creds.AccessKeyId, *creds.SecretAccessKey, *creds.SessionToken),
		),
	)
	if err != nil {
		log.Printf("Error configuration: %s\n", err.Error())
		return aws.Config{}, err
	}
	return cfg, nil
}
