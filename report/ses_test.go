package report

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
)

type fakeSES struct {
	in  *ses.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(ctx context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSESDispatchBuildsEmail(t *testing.T) {
	api := &fakeSES{}
	d := &SESDispatcher{api: api, from: "reports@example.com", to: "ops@example.com"}
	id, err := d.Dispatch(context.Background(), Message{Subject: "s", Text: "t", HTML: "<p>h</p>"})
	if err != nil || id != "ses-1" {
		t.Fatalf("dispatch: %q %v", id, err)
	}
	if aws.ToString(api.in.Source) != "reports@example.com" || api.in.Destination.ToAddresses[0] != "ops@example.com" {
		t.Fatalf("unexpected addressing %+v", api.in)
	}
	m := api.in.Message
	if aws.ToString(m.Subject.Data) != "s" || aws.ToString(m.Body.Text.Data) != "t" || aws.ToString(m.Body.Html.Data) != "<p>h</p>" {
		t.Fatalf("unexpected message %+v", m)
	}
	if aws.ToString(m.Subject.Charset) != "UTF-8" {
		t.Fatalf("unexpected charset")
	}
}

func TestSESDispatchWrapsErrors(t *testing.T) {
	cause := errors.New("throttled")
	d := &SESDispatcher{api: &fakeSES{err: cause}, from: "a", to: "b"}
	if _, err := d.Dispatch(context.Background(), Message{}); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestNewSESDispatcherRequiresAddresses(t *testing.T) {
	if _, err := NewSESDispatcher(aws.Config{}, "", "", "ops@example.com"); err == nil {
		t.Fatalf("expected error for missing sender")
	}
}
