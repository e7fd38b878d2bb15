package dao

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sagarregmi2056/WhatsappBulkMessage/model"
)

// endOfEntry delimits records in the log file. Records are serialized as
// single-line compact JSON, which can never contain a raw newline, so user
// content containing this string can never produce a sentinel *line*.
const endOfEntry = "---END_ENTRY---"

var ErrNotFound = errors.New("not found")

type CampaignPage struct {
	Campaigns []model.CampaignSummary `json:"campaigns"`
	Total     int                     `json:"total"`
}

type CampaignLog interface {
	//Append durably stores a completed campaign record without blocking the caller
	Append(record model.CampaignRecord)
	//List returns campaign summaries, most recent first
	List(page, limit int) (CampaignPage, error)
	//GetByTimestamp returns the full record with the given timestamp key
	GetByTimestamp(timestamp int64) (model.CampaignRecord, error)
	//Search returns every record matching the query case-insensitively
	Search(query string) ([]model.CampaignRecord, error)
	//Close flushes pending appends and releases the file
	Close() error
}

func NewCampaignLog(path string) (CampaignLog, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	l := &campaignLog{
		path:    path,
		file:    file,
		pending: make(chan model.CampaignRecord, 64),
		done:    make(chan struct{}),
	}
	go l.writeLoop()

	return l, nil
}

type campaignLog struct {
	path      string
	file      *os.File
	pending   chan model.CampaignRecord
	done      chan struct{}
	closeOnce sync.Once
}

func (l *campaignLog) Append(record model.CampaignRecord) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("append on closed campaign log",
				zap.Int64("timestamp", record.Timestamp))
		}
	}()
	l.pending <- record
}

// writeLoop is the single writer. Each record becomes one Write call of the
// complete framed entry, so a crash can tear at most the trailing entry.
func (l *campaignLog) writeLoop() {
	defer close(l.done)

	for record := range l.pending {
		data, err := json.Marshal(record)
		if err != nil {
			zap.L().Error("encoding campaign record",
				zap.Int64("timestamp", record.Timestamp), zap.Error(err))
			continue
		}

		entry := make([]byte, 0, len(data)+len(endOfEntry)+2)
		entry = append(entry, data...)
		entry = append(entry, '\n')
		entry = append(entry, endOfEntry...)
		entry = append(entry, '\n')

		if _, err := l.file.Write(entry); err != nil {
			zap.L().Error("appending campaign record",
				zap.Int64("timestamp", record.Timestamp), zap.Error(err))
			continue
		}
		if err := l.file.Sync(); err != nil {
			zap.L().Warn("syncing campaign log", zap.Error(err))
		}
	}
}

func (l *campaignLog) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.pending)
		<-l.done
		err = l.file.Close()
	})
	return err
}

// readAll is the sequential scan every query runs on. Reads use their own
// handle so they can run while the writer appends; a torn trailing entry is
// skipped with a warning.
func (l *campaignLog) readAll() ([]model.CampaignRecord, error) {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var records []model.CampaignRecord
	var entry []string
	for scanner.Scan() {
		line := scanner.Text()
		if line != endOfEntry {
			entry = append(entry, line)
			continue
		}

		var record model.CampaignRecord
		if err := json.Unmarshal([]byte(strings.Join(entry, "\n")), &record); err != nil {
			zap.L().Warn("skipping corrupt campaign log entry", zap.Error(err))
		} else {
			records = append(records, record)
		}
		entry = entry[:0]
	}
	if err := scanner.Err(); err != nil {
		return records, err
	}
	if len(entry) > 0 {
		zap.L().Warn("skipping partial campaign log entry at end of file")
	}

	return records, nil
}

func (l *campaignLog) List(page, limit int) (CampaignPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	records, err := l.readAll()
	if err != nil {
		return CampaignPage{}, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})

	result := CampaignPage{Total: len(records), Campaigns: []model.CampaignSummary{}}

	start := (page - 1) * limit
	if start >= len(records) {
		return result, nil
	}
	end := start + limit
	if end > len(records) {
		end = len(records)
	}
	for _, record := range records[start:end] {
		result.Campaigns = append(result.Campaigns, record.Summary())
	}

	return result, nil
}

func (l *campaignLog) GetByTimestamp(timestamp int64) (model.CampaignRecord, error) {
	records, err := l.readAll()
	if err != nil {
		return model.CampaignRecord{}, err
	}

	for _, record := range records {
		if record.Timestamp == timestamp {
			return record, nil
		}
	}

	return model.CampaignRecord{}, ErrNotFound
}

func (l *campaignLog) Search(query string) ([]model.CampaignRecord, error) {
	records, err := l.readAll()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	matches := []model.CampaignRecord{}
	for _, record := range records {
		if matchesRecord(record, query) {
			matches = append(matches, record)
		}
	}

	return matches, nil
}

func matchesRecord(record model.CampaignRecord, query string) bool {
	if containsFold(record.CampaignName, query) || containsFold(record.MessageTemplate, query) {
		return true
	}
	for _, recipient := range record.Successful {
		if containsFold(recipient.Name, query) ||
			containsFold(recipient.PhoneNumber, query) ||
			containsFold(recipient.FormattedNumber, query) ||
			containsFold(recipient.ActualMessage, query) {
			return true
		}
	}
	for _, recipient := range record.Failed {
		if containsFold(recipient.Name, query) ||
			containsFold(recipient.PhoneNumber, query) ||
			containsFold(recipient.Error, query) {
			return true
		}
	}
	return false
}

func containsFold(s, loweredQuery string) bool {
	return strings.Contains(strings.ToLower(s), loweredQuery)
}
