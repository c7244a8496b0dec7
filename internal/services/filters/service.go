package filters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bufbuild/connect-go"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/filterql"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/logcat"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/matcher"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/repo"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/services"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/timeutil"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "tkd.logcat.v1.FilterService"

const (
	TokenizeProcedure          = "/" + ServiceName + "/Tokenize"
	ParseProcedure             = "/" + ServiceName + "/Parse"
	CompleteProcedure          = "/" + ServiceName + "/Complete"
	QueryMessagesProcedure     = "/" + ServiceName + "/QueryMessages"
	PushMessagesProcedure      = "/" + ServiceName + "/PushMessages"
	ClearMessagesProcedure     = "/" + ServiceName + "/ClearMessages"
	RecentFiltersProcedure     = "/" + ServiceName + "/RecentFilters"
	DefaultFilterProcedure     = "/" + ServiceName + "/DefaultFilter"
	SaveFilterProcedure        = "/" + ServiceName + "/SaveFilter"
	ListSavedFiltersProcedure  = "/" + ServiceName + "/ListSavedFilters"
	DeleteSavedFilterProcedure = "/" + ServiceName + "/DeleteSavedFilter"
	ToggleTermProcedure        = "/" + ServiceName + "/ToggleTerm"
	CountTermsProcedure        = "/" + ServiceName + "/CountTerms"
)

type Service struct {
	repo repo.Repo

	*services.Common
}

func New(ctx context.Context, repo repo.Repo, common *services.Common) (*Service, error) {
	return &Service{
		repo:   repo,
		Common: common,
	}, nil
}

// NewHandler returns the path prefix and handler that serve all procedures
// of svc.
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()

	unary := map[string]func(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error){
		TokenizeProcedure:          svc.Tokenize,
		ParseProcedure:             svc.Parse,
		CompleteProcedure:          svc.Complete,
		QueryMessagesProcedure:     svc.QueryMessages,
		PushMessagesProcedure:      svc.PushMessages,
		ClearMessagesProcedure:     svc.ClearMessages,
		RecentFiltersProcedure:     svc.RecentFilters,
		DefaultFilterProcedure:     svc.DefaultFilter,
		SaveFilterProcedure:        svc.SaveFilter,
		ListSavedFiltersProcedure:  svc.ListSavedFilters,
		DeleteSavedFilterProcedure: svc.DeleteSavedFilter,
		ToggleTermProcedure:        svc.ToggleTerm,
		CountTermsProcedure:        svc.CountTerms,
	}

	for procedure, fn := range unary {
		mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
	}

	return "/" + ServiceName + "/", mux
}

func (svc *Service) Tokenize(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	tokens := filterql.Tokenize(getString(req.Msg, "query"), nil)

	return respond(map[string]any{
		"tokens": filterql.EncodeTokens(tokens),
	})
}

func (svc *Service) Parse(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	q, err := filterql.Parse(getString(req.Msg, "query"))
	if err != nil {
		return nil, parseError(err)
	}

	return respond(map[string]any{
		"empty":     q.IsEmpty(),
		"filters":   filterql.EncodeQuery(q),
		"canonical": q.String(),
	})
}

// ToggleTerm adds a key:value term to a query or removes it, the way
// clicking a message field toggles it in the logcat filter.
func (svc *Service) ToggleTerm(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	key := getString(req.Msg, "key")
	if _, ok := filterql.DefaultKeySet().Lookup(key); !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown key %q", key))
	}

	query, ok := filterql.ToggleTerm(getString(req.Msg, "query"), key, getString(req.Msg, "value"))

	return respond(map[string]any{
		"query":   query,
		"changed": ok,
	})
}

func (svc *Service) CountTerms(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	q, err := filterql.Parse(getString(req.Msg, "query"))
	if err != nil {
		return nil, parseError(err)
	}

	return respond(filterql.CountTerms(q).Map())
}

func (svc *Service) Complete(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	lang := filterql.New(nil, svc.repo)

	// completion works on incomplete input, the parse error does not matter
	_ = lang.Process(getString(req.Msg, "query"))

	state, key, suggestions, err := lang.ExpectedNextToken(ctx)
	if err != nil {
		return nil, repoError(err)
	}

	values := make([]any, len(suggestions))
	for idx, s := range suggestions {
		values[idx] = s
	}

	return respond(map[string]any{
		"state":       string(state),
		"key":         key,
		"suggestions": values,
	})
}

func (svc *Service) QueryMessages(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	query := getString(req.Msg, "query")

	q, err := filterql.Parse(query)
	if err != nil {
		return nil, parseError(err)
	}

	if _, err := matcher.CompileQuery(q, svc.Config.MatchOptions()); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	var tr repo.TimeRange
	if from := getString(req.Msg, "from"); from != "" {
		tr.From, err = timeutil.ParseStart(from)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid value for from: %w", err))
		}
	}
	if to := getString(req.Msg, "to"); to != "" {
		tr.To, err = timeutil.ParseEnd(to)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid value for to: %w", err))
		}
	}

	pagination, err := paginationFrom(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	msgs, total, err := svc.repo.FilterMessages(ctx, q.Filter(), tr, pagination)
	if err != nil {
		return nil, err
	}

	slog.Debug("filter applied", "query", query, "terms", filterql.CountTerms(q).Map())

	if err := svc.repo.RecordFilter(ctx, query); err != nil {
		slog.Warn("failed to record filter history", "query", query, "error", err)
	}

	return respond(map[string]any{
		"messages":   messagesToList(msgs),
		"totalCount": total,
	})
}

func (svc *Service) PushMessages(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	msgs, err := messagesFromList(req.Msg.GetFields()["messages"].GetListValue())
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	if text := getString(req.Msg, "text"); text != "" {
		parsed, err := logcat.NewReader(strings.NewReader(text)).ReadAll()
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}

		msgs = append(msgs, parsed...)
	}

	if err := svc.repo.AppendMessages(ctx, msgs); err != nil {
		return nil, err
	}

	for _, m := range msgs {
		if !m.IsCrash() {
			continue
		}

		values := m.Map()
		values["type"] = "crash"

		event, err := structpb.NewStruct(values)
		if err != nil {
			slog.Error("failed to prepare crash event", "error", err)
			continue
		}

		svc.PublishEvent(event)
	}

	return respond(map[string]any{
		"count": len(msgs),
	})
}

func (svc *Service) ClearMessages(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	if err := svc.repo.ClearMessages(ctx); err != nil {
		return nil, err
	}

	return respond(map[string]any{})
}

func (svc *Service) RecentFilters(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	list, err := svc.repo.RecentFilters(ctx, getInt(req.Msg, "limit"))
	if err != nil {
		return nil, err
	}

	values := make([]any, len(list))
	for idx, q := range list {
		values[idx] = q
	}

	return respond(map[string]any{
		"filters": values,
	})
}

// DefaultFilter returns the filter a new logcat view starts with.
func (svc *Service) DefaultFilter(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	query := svc.Config.DefaultFilter

	if svc.Config.MostRecentlyUsedIsDefault {
		recent, err := svc.repo.RecentFilters(ctx, 1)
		if err != nil {
			return nil, err
		}

		if len(recent) > 0 {
			query = recent[0]
		}
	}

	return respond(map[string]any{
		"query": query,
	})
}

func (svc *Service) SaveFilter(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	name := strings.TrimSpace(getString(req.Msg, "name"))
	if name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("missing filter name"))
	}

	query := getString(req.Msg, "query")

	q, err := filterql.Parse(query)
	if err != nil {
		return nil, parseError(err)
	}

	if _, err := matcher.CompileQuery(q, svc.Config.MatchOptions()); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	if err := svc.repo.SaveFilter(ctx, repo.SavedFilter{
		Name:  name,
		Query: query,
	}); err != nil {
		return nil, err
	}

	return respond(map[string]any{})
}

func (svc *Service) ListSavedFilters(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	list, err := svc.repo.ListSavedFilters(ctx)
	if err != nil {
		return nil, err
	}

	values := make([]any, len(list))
	for idx, f := range list {
		values[idx] = savedFilterToMap(f)
	}

	return respond(map[string]any{
		"filters": values,
	})
}

func (svc *Service) DeleteSavedFilter(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	if err := svc.repo.DeleteSavedFilter(ctx, getString(req.Msg, "name")); err != nil {
		return nil, repoError(err)
	}

	return respond(map[string]any{})
}
