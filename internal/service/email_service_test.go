package service

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"talkquest/internal/models"
)

type mockSES struct {
	mock.Mock
}

func (m *mockSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sesv2.SendEmailOutput)
	return out, args.Error(1)
}

func TestNotifyGoalCompleted(t *testing.T) {
	client := new(mockSES)
	svc := newEmailService(client, "noreply@example.com", "TalkQuest", "https://app.example.com", zap.NewNop())

	assigner := &models.User{ID: "t1", DisplayName: "Dr. Lee", Email: "lee@example.com"}
	child := &models.User{ID: "c1", DisplayName: "Sam"}
	goal := &models.AssignedGoal{ID: "g1", Title: "Say <r> words", Progress: 5, TargetValue: 5, XPReward: 50}

	client.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *sesv2.SendEmailInput) bool {
		return aws.ToString(in.FromEmailAddress) == "TalkQuest <noreply@example.com>" &&
			in.Destination.ToAddresses[0] == "lee@example.com" &&
			strings.Contains(aws.ToString(in.Content.Simple.Subject.Data), "Sam completed a goal") &&
			strings.Contains(aws.ToString(in.Content.Simple.Body.Html.Data), "Say &lt;r&gt; words")
	})).Return(&sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil).Once()

	require.NoError(t, svc.NotifyGoalCompleted(context.Background(), assigner, child, goal))
	client.AssertExpectations(t)
}

func TestNotifyGoalCompletedSendFailure(t *testing.T) {
	client := new(mockSES)
	svc := newEmailService(client, "noreply@example.com", "", "https://app.example.com", zap.NewNop())

	client.On("SendEmail", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	err := svc.NotifyGoalCompleted(context.Background(),
		&models.User{Email: "lee@example.com"}, &models.User{}, &models.AssignedGoal{ID: "g1"})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDisabledEmailService(t *testing.T) {
	svc, err := NewEmailService(context.Background(), "us-east-1", "", "", "", zap.NewNop())
	require.NoError(t, err)
	assert.False(t, svc.IsEnabled())

	err = svc.NotifyGoalCompleted(context.Background(), &models.User{}, &models.User{}, &models.AssignedGoal{ID: "g1"})
	assert.NoError(t, err)
}
