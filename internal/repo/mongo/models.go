package mongo

import (
	"time"

	"github.com/tierklinik-dobersberg/logfilter-service/internal/logcat"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/repo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type (
	Message struct {
		ID            primitive.ObjectID `bson:"_id,omitempty"`
		Timestamp     time.Time          `bson:"timestamp"`
		Level         int                `bson:"level"`
		Pid           int                `bson:"pid"`
		Tid           int                `bson:"tid"`
		ApplicationID string             `bson:"applicationId,omitempty"`
		ProcessName   string             `bson:"processName,omitempty"`
		Tag           string             `bson:"tag"`
		Message       string             `bson:"message"`
	}

	HistoryEntry struct {
		ID       primitive.ObjectID `bson:"_id,omitempty"`
		Query    string             `bson:"query"`
		LastUsed time.Time          `bson:"lastUsed"`
	}

	SavedFilter struct {
		ID         primitive.ObjectID `bson:"_id,omitempty"`
		Name       string             `bson:"name"`
		Query      string             `bson:"query"`
		CreateTime time.Time          `bson:"createTime"`
	}
)

func (m *Message) ToModel() *logcat.Message {
	return &logcat.Message{
		Header: logcat.Header{
			Level:         logcat.Level(m.Level),
			Pid:           m.Pid,
			Tid:           m.Tid,
			ApplicationID: m.ApplicationID,
			ProcessName:   m.ProcessName,
			Tag:           m.Tag,
			Timestamp:     m.Timestamp.Local(),
		},
		Message: m.Message,
	}
}

func messageFromModel(m *logcat.Message) *Message {
	return &Message{
		Timestamp:     m.Timestamp,
		Level:         int(m.Level),
		Pid:           m.Pid,
		Tid:           m.Tid,
		ApplicationID: m.ApplicationID,
		ProcessName:   m.ProcessName,
		Tag:           m.Tag,
		Message:       m.Message,
	}
}

func (f *SavedFilter) ToModel() repo.SavedFilter {
	return repo.SavedFilter{
		Name:       f.Name,
		Query:      f.Query,
		CreateTime: f.CreateTime.Local(),
	}
}
