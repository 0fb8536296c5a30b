package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/pinpoint"
	"github.com/aws/aws-sdk-go-v2/service/pinpoint/types"
	"github.com/classifyhq/classify-auth/internal/otpauth/entity"
)

// PinpointSMS delivers passcodes as transactional SMS through AWS Pinpoint.
type PinpointSMS struct {
	cfg    PinpointConfig
	client *pinpoint.Client
}

// PinpointConfig configures the Pinpoint SMS provider.
type PinpointConfig struct {
	ApplicationID string
	AccessKey     string
	SecretKey     string
	Region        string
	SenderID      string
}

// NewPinpointSMS constructs the SMS provider.
func NewPinpointSMS(ctx context.Context, cfg PinpointConfig) (*PinpointSMS, error) {
	if cfg.ApplicationID == "" {
		return nil, errors.New("pinpoint: application id is required")
	}
	if cfg.Region == "" {
		return nil, errors.New("pinpoint: region is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, err
	}

	return &PinpointSMS{cfg: cfg, client: pinpoint.NewFromConfig(awsCfg)}, nil
}

func (p *PinpointSMS) Name() string { return "pinpoint" }

func (p *PinpointSMS) Method() entity.DeliveryMethod { return entity.DeliveryMethodSMS }

// Send pushes the passcode as a transactional message to one phone number.
func (p *PinpointSMS) Send(ctx context.Context, destination, code string, ttl time.Duration) error {
	body := fmt.Sprintf("%s is your verification code. It expires in %d minutes.",
		code, int(ttl.Minutes()))

	_, err := p.client.SendMessages(ctx, &pinpoint.SendMessagesInput{
		ApplicationId: aws.String(p.cfg.ApplicationID),
		MessageRequest: &types.MessageRequest{
			Addresses: map[string]types.AddressConfiguration{
				destination: {ChannelType: types.ChannelTypeSms},
			},
			MessageConfiguration: &types.DirectMessageConfiguration{
				SMSMessage: &types.SMSMessage{
					Body:        aws.String(body),
					MessageType: types.MessageTypeTransactional,
					SenderId:    aws.String(p.cfg.SenderID),
				},
			},
		},
	})

	return err
}
