package automation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"github.com/elazarl/goproxy"
	"github.com/olebedev/gojax/fetch"
	commonv1 "github.com/tierklinik-dobersberg/apis/gen/go/tkd/common/v1"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/filterql"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/matcher"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/repo"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/report"
)

type schedule struct {
	interval time.Duration
	fn       goja.Callable
}

type Engine struct {
	rt        *eventloop.EventLoop
	r         *goja.Runtime
	this      *goja.Object
	providers Providers

	l        sync.Mutex
	schedule *schedule
}

type Providers struct {
	Repo    repo.Repo
	Options matcher.Options

	FS fs.FS
}

func New(script string, providers Providers) (*Engine, error) {
	r := require.NewRegistryWithLoader(func(path string) ([]byte, error) {
		return sourceLoader(providers.FS, path)
	})

	e := &Engine{
		rt:        eventloop.NewEventLoop(eventloop.EnableConsole(true), eventloop.WithRegistry(r)),
		providers: providers,
	}

	proxy := goproxy.NewProxyHttpServer()
	fetch.Enable(e.rt, proxy)

	var err error
	e.rt.Run(func(rt *goja.Runtime) {
		e.this = rt.NewObject()
		e.r = rt

		rt.SetFieldNameMapper(goja.TagFieldNameMapper("json", false))

		if err = rt.Set("schedule", e.Schedule); err != nil {
			return
		}

		if err = rt.Set("logcat", e.getLogcatObject()); err != nil {
			return
		}

		if err = rt.Set("report", e.getReportObject()); err != nil {
			return
		}

		_, err = rt.RunString(script)
	})
	if err != nil {
		return nil, err
	}

	e.rt.Start()

	return e, nil
}

func (e *Engine) Wait() {
	e.rt.Stop()
}

// Interval returns the interval requested by the script and false if the
// script did not call schedule.
func (e *Engine) Interval() (time.Duration, bool) {
	e.l.Lock()
	defer e.l.Unlock()

	if e.schedule == nil {
		return 0, false
	}

	return e.schedule.interval, true
}

// RunSchedule invokes the scheduled callback on the event loop and waits
// for it to return.
func (e *Engine) RunSchedule(ctx context.Context) error {
	e.l.Lock()
	s := e.schedule
	e.l.Unlock()

	if s == nil {
		return nil
	}

	errc := make(chan error, 1)
	e.rt.RunOnLoop(func(*goja.Runtime) {
		_, err := s.fn(e.this)
		errc <- err
	})

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) Schedule(interval string, fn goja.Callable) error {
	d, err := time.ParseDuration(interval)
	if err != nil {
		return fmt.Errorf("invalid schedule interval: %w", err)
	}

	if d <= 0 {
		return fmt.Errorf("invalid schedule interval %q", interval)
	}

	e.l.Lock()
	defer e.l.Unlock()

	e.schedule = &schedule{
		interval: d,
		fn:       fn,
	}

	return nil
}

func (e *Engine) query(q string, limit int) ([]any, error) {
	parsed, err := filterql.Parse(q)
	if err != nil {
		return nil, err
	}

	var pagination *commonv1.Pagination
	if limit > 0 {
		pagination = &commonv1.Pagination{
			PageSize: int32(limit),
			SortBy: []*commonv1.Sort{
				{FieldName: repo.SortTimestamp, Direction: commonv1.SortDirection_SORT_DIRECTION_DESC},
			},
		}
	}

	msgs, _, err := e.providers.Repo.FilterMessages(context.Background(), parsed.Filter(), repo.TimeRange{}, pagination)
	if err != nil {
		return nil, err
	}

	result := make([]any, len(msgs))
	for idx, m := range msgs {
		result[idx] = m.Map()
	}

	return result, nil
}

func (e *Engine) getLogcatObject() *goja.Object {
	obj := e.r.NewObject()

	obj.Set("parse", func(q string) (any, error) {
		parsed, err := filterql.Parse(q)
		if err != nil {
			return nil, err
		}

		return map[string]any{
			"empty":     parsed.IsEmpty(),
			"filters":   filterql.EncodeQuery(parsed),
			"canonical": parsed.String(),
		}, nil
	})

	obj.Set("query", func(q string, limit int) (any, error) {
		return e.query(q, limit)
	})

	obj.Set("count", func(q string) (int, error) {
		parsed, err := filterql.Parse(q)
		if err != nil {
			return 0, err
		}

		// validate before hitting the repository
		if _, err := matcher.CompileQuery(parsed, e.providers.Options); err != nil {
			return 0, err
		}

		_, total, err := e.providers.Repo.FilterMessages(context.Background(), parsed.Filter(), repo.TimeRange{}, &commonv1.Pagination{PageSize: 1})
		if err != nil {
			return 0, err
		}

		return total, nil
	})

	return obj
}

func (e *Engine) getReportObject() *goja.Object {
	obj := e.r.NewObject()

	obj.Set("render", func(title string, q string, limit int) (string, error) {
		parsed, err := filterql.Parse(q)
		if err != nil {
			return "", err
		}

		var pagination *commonv1.Pagination
		if limit > 0 {
			pagination = &commonv1.Pagination{PageSize: int32(limit)}
		}

		msgs, total, err := e.providers.Repo.FilterMessages(context.Background(), parsed.Filter(), repo.TimeRange{}, pagination)
		if err != nil {
			return "", err
		}

		return report.HTML(report.Report{
			Title:    title,
			Query:    parsed.String(),
			Total:    total,
			Messages: msgs,
		})
	})

	return obj
}

func sourceLoader(root fs.FS, filename string) ([]byte, error) {
	if root == nil {
		return nil, require.ModuleFileDoesNotExistError
	}

	fp := filepath.FromSlash(filename)
	f, err := root.Open(fp)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = require.ModuleFileDoesNotExistError
		} else if runtime.GOOS == "windows" {
			if errors.Is(err, syscall.Errno(0x7b)) { // ERROR_INVALID_NAME
				err = require.ModuleFileDoesNotExistError
			}
		}
		return nil, err
	}

	defer f.Close()

	// directories can be read on some systems, check with stat instead
	if fi, err := f.Stat(); err == nil {
		if fi.IsDir() {
			return nil, require.ModuleFileDoesNotExistError
		}
	} else {
		return nil, err
	}

	return io.ReadAll(f)
}
