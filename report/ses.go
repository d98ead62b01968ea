package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

const charset = "UTF-8"

// Dispatcher sends a rendered report and returns the provider message id.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) (string, error)
}

type sesAPI interface {
	SendEmail(ctx context.Context, in *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESDispatcher mails reports through Amazon SES (or LocalStack).
type SESDispatcher struct {
	api  sesAPI
	from string
	to   string
}

// NewSESDispatcher builds an SES client from awsCfg. endpoint overrides the
// service endpoint when set.
func NewSESDispatcher(awsCfg aws.Config, endpoint, from, to string) (*SESDispatcher, error) {
	if from == "" || to == "" {
		return nil, errors.New("report sender and recipient must be configured")
	}
	var opts []func(*ses.Options)
	if endpoint != "" {
		opts = append(opts, func(o *ses.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	return &SESDispatcher{api: ses.NewFromConfig(awsCfg, opts...), from: from, to: to}, nil
}

func content(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String(charset)}
}

func (d *SESDispatcher) Dispatch(ctx context.Context, msg Message) (string, error) {
	out, err := d.api.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(d.from),
		Destination: &types.Destination{ToAddresses: []string{d.to}},
		Message: &types.Message{
			Subject: content(msg.Subject),
			Body: &types.Body{
				Text: content(msg.Text),
				Html: content(msg.HTML),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ses send email: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
