package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/localnerve/jam-build-intakedb/internal/logger"
)

// SESAPI is the subset of the SES client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier emails the applicant through Amazon SES.
type SESNotifier struct {
	client SESAPI
	sender string
	log    logger.Logger
}

// NewSESNotifier loads the default AWS credential chain for region.
func NewSESNotifier(ctx context.Context, region, sender string, log logger.Logger) (*SESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSESNotifierWithClient(ses.NewFromConfig(cfg), sender, log), nil
}

func NewSESNotifierWithClient(client SESAPI, sender string, log logger.Logger) *SESNotifier {
	return &SESNotifier{client: client, sender: sender, log: log}
}

var subjects = map[string]string{
	"submitted": "We received your application",
	"accepted":  "Your application was accepted",
	"rejected":  "An update on your application",
	"withdrawn": "Your application was withdrawn",
}

func (n *SESNotifier) ApplicationStatusChanged(ctx context.Context, change StatusChange) error {
	if change.ApplicantEmail == "" {
		n.log.Debug("no applicant email, skipping notice", map[string]interface{}{"applicationId": change.ApplicationID})
		return nil
	}
	subject, ok := subjects[change.To]
	if !ok {
		return nil
	}

	name := change.ApplicantName
	if name == "" {
		name = "applicant"
	}
	body := fmt.Sprintf("Hello %s,\n\nThe status of your application %s is now %s.\n", name, change.ApplicationID, change.To)

	out, err := n.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(n.sender),
		Destination: &types.Destination{ToAddresses: []string{change.ApplicantEmail}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	n.log.Info("status notice sent", map[string]interface{}{
		"applicationId": change.ApplicationID,
		"messageId":     aws.ToString(out.MessageId),
	})
	return nil
}
