package services

import (
	"context"
	"log/slog"

	connect "github.com/bufbuild/connect-go"
	eventsv1 "github.com/tierklinik-dobersberg/apis/gen/go/tkd/events/v1"
	"github.com/tierklinik-dobersberg/apis/gen/go/tkd/events/v1/eventsv1connect"
	"github.com/tierklinik-dobersberg/apis/pkg/cli"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/config"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

type Common struct {
	Config config.Config
}

// PublishEvent forwards event to the events service if one is configured.
// Publishing happens in the background, failures are only logged.
func (svc *Common) PublishEvent(event proto.Message) {
	if svc.Config.EventsServiceUrl == "" {
		return
	}

	go func() {
		cli := eventsv1connect.NewEventServiceClient(cli.NewInsecureHttp2Client(), svc.Config.EventsServiceUrl)

		anypb, err := anypb.New(event)
		if err != nil {
			slog.Error("failed to prepare google.protobuf.Any for publishing", "error", err, "typeUrl", proto.MessageName(event))

			return
		}

		if _, err := cli.Publish(context.Background(), connect.NewRequest(&eventsv1.Event{
			Event: anypb,
		})); err != nil {
			slog.Error("failed to publish event", "error", err, "typeUrl", proto.MessageName(event))
		}
	}()
}
