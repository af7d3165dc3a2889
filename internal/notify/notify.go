// Package notify delivers out-of-band alerts for high-risk reviews over
// SNS, with email escalation over SES. Delivery is best effort; the
// pipeline never blocks or fails on a notification.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"reviewdesk/internal/common/aws"
	"reviewdesk/internal/common/config"
	apperrors "reviewdesk/internal/common/errors"
	"reviewdesk/internal/common/logger"
	"reviewdesk/internal/models"
)

// Notifier alerts operators about reviews that need eyes on them.
type Notifier interface {
	NotifyRisk(ctx context.Context, review models.Review, analysis models.ReviewAnalysis) error
}

type riskAlert struct {
	Platform       string    `json:"platform"`
	ReviewID       string    `json:"reviewId"`
	StoreID        string    `json:"storeId"`
	RiskLevel      string    `json:"riskLevel"`
	ApprovalReason string    `json:"approvalReason,omitempty"`
	ReviewExcerpt  string    `json:"reviewExcerpt,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type AWSNotifier struct {
	sns *aws.SNSClient
	ses *aws.SESClient
	cfg config.NotificationConfig
	log logger.Logger
}

func NewAWSNotifier(snsClient *aws.SNSClient, sesClient *aws.SESClient, cfg config.NotificationConfig, log logger.Logger) *AWSNotifier {
	return &AWSNotifier{
		sns: snsClient,
		ses: sesClient,
		cfg: cfg,
		log: log.With(map[string]interface{}{
			"component": "notifier",
		}),
	}
}

// NotifyRisk publishes the alert to the risk topic and, for high risk,
// escalates over email as well.
func (n *AWSNotifier) NotifyRisk(ctx context.Context, review models.Review, analysis models.ReviewAnalysis) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	alert := riskAlert{
		Platform:       string(review.Platform),
		ReviewID:       review.PlatformReviewID,
		StoreID:        review.PlatformStoreID,
		RiskLevel:      string(analysis.RiskLevel),
		ApprovalReason: analysis.ApprovalReason,
		ReviewExcerpt:  excerpt(review.ReviewText, 200),
		Timestamp:      time.Now().UTC(),
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return apperrors.NewNotificationSendFailedError("sns", err)
	}

	_, err = n.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(n.cfg.TopicARN),
		Subject:  awssdk.String(fmt.Sprintf("[%s] high-risk review %s", alert.Platform, alert.ReviewID)),
		Message:  awssdk.String(string(payload)),
	})
	if err != nil {
		return apperrors.NewNotificationSendFailedError("sns", err)
	}

	if analysis.RiskLevel == models.RiskHigh && n.cfg.Email.Enabled && n.ses != nil {
		if err := n.sendEmail(ctx, alert); err != nil {
			// Email escalation failing must not mask the successful SNS
			// publish; log and move on.
			n.log.Warn("email escalation failed", map[string]interface{}{
				"platform": alert.Platform,
				"reviewId": alert.ReviewID,
				"error":    err.Error(),
			})
		}
	}
	return nil
}

func (n *AWSNotifier) sendEmail(ctx context.Context, alert riskAlert) error {
	body := fmt.Sprintf(
		"고위험 리뷰가 접수되었습니다.\n\n플랫폼: %s\n리뷰 ID: %s\n매장 ID: %s\n위험도: %s\n사유: %s\n\n리뷰 내용:\n%s\n",
		alert.Platform, alert.ReviewID, alert.StoreID, alert.RiskLevel, alert.ApprovalReason, alert.ReviewExcerpt)

	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Source: awssdk.String(n.cfg.Email.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{n.cfg.Email.ToEmail},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{
				Data: awssdk.String(fmt.Sprintf("[고위험 리뷰] %s %s", alert.Platform, alert.ReviewID)),
			},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: awssdk.String(body)},
			},
		},
	})
	if err != nil {
		return apperrors.NewNotificationSendFailedError("ses", err)
	}
	return nil
}

// NopNotifier is used when notifications are disabled.
type NopNotifier struct{}

func (NopNotifier) NotifyRisk(context.Context, models.Review, models.ReviewAnalysis) error {
	return nil
}

func excerpt(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
