package dao

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sagarregmi2056/WhatsappBulkMessage/model"
)

func testRecord(timestamp int64, name string) model.CampaignRecord {
	sent := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	return model.CampaignRecord{
		CampaignName:    name,
		Timestamp:       timestamp,
		MessageTemplate: "Hi {name}!",
		Successful: []model.SentRecipient{
			{
				Name:            "John Doe",
				PhoneNumber:     "9841234567",
				FormattedNumber: "9779841234567",
				ActualMessage:   "Hi John Doe!",
				Timestamp:       sent,
			},
		},
		Failed: []model.FailedRecipient{
			{
				Name:        "Bad",
				PhoneNumber: "123",
				Error:       "too short: 3 digits, need at least 10",
				Timestamp:   sent,
			},
		},
		Statistics: model.Statistics{Total: 2, Successful: 1, Failed: 1},
	}
}

func newTestLog(t *testing.T) (CampaignLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "campaigns.log")
	campaignLog, err := NewCampaignLog(path)
	require.NoError(t, err)
	return campaignLog, path
}

func reopen(t *testing.T, path string) CampaignLog {
	t.Helper()
	campaignLog, err := NewCampaignLog(path)
	require.NoError(t, err)
	t.Cleanup(func() { campaignLog.Close() })
	return campaignLog
}

func TestCampaignLog_RoundTrip(t *testing.T) {
	campaignLog, path := newTestLog(t)

	record := testRecord(1710936000000, "spring sale")
	campaignLog.Append(record)
	require.NoError(t, campaignLog.Close())

	got, err := reopen(t, path).GetByTimestamp(record.Timestamp)

	require.NoError(t, err)
	require.Equal(t, record, got)
}

func TestCampaignLog_GetByTimestampNotFound(t *testing.T) {
	campaignLog, path := newTestLog(t)
	require.NoError(t, campaignLog.Close())

	_, err := reopen(t, path).GetByTimestamp(42)

	require.ErrorIs(t, err, ErrNotFound)
}

func TestCampaignLog_ListReverseChronological(t *testing.T) {
	campaignLog, path := newTestLog(t)
	for i := int64(1); i <= 5; i++ {
		campaignLog.Append(testRecord(1000+i, "campaign"))
	}
	require.NoError(t, campaignLog.Close())

	page, err := reopen(t, path).List(1, 3)

	require.NoError(t, err)
	require.Equal(t, 5, page.Total)
	require.Len(t, page.Campaigns, 3)
	require.Equal(t, int64(1005), page.Campaigns[0].Timestamp)
	require.Equal(t, int64(1004), page.Campaigns[1].Timestamp)
	require.Equal(t, int64(1003), page.Campaigns[2].Timestamp)
}

func TestCampaignLog_ListSecondPage(t *testing.T) {
	campaignLog, path := newTestLog(t)
	for i := int64(1); i <= 5; i++ {
		campaignLog.Append(testRecord(1000+i, "campaign"))
	}
	require.NoError(t, campaignLog.Close())

	page, err := reopen(t, path).List(2, 3)

	require.NoError(t, err)
	require.Equal(t, 5, page.Total)
	require.Len(t, page.Campaigns, 2)
	require.Equal(t, int64(1002), page.Campaigns[0].Timestamp)
	require.Equal(t, int64(1001), page.Campaigns[1].Timestamp)
}

func TestCampaignLog_ListSummariesOmitRecipients(t *testing.T) {
	campaignLog, path := newTestLog(t)
	campaignLog.Append(testRecord(1710936000000, "spring sale"))
	require.NoError(t, campaignLog.Close())

	page, err := reopen(t, path).List(1, 10)

	require.NoError(t, err)
	require.Len(t, page.Campaigns, 1)
	require.Equal(t, "spring sale", page.Campaigns[0].CampaignName)
	require.Equal(t, model.Statistics{Total: 2, Successful: 1, Failed: 1}, page.Campaigns[0].Statistics)
}

func TestCampaignLog_Search(t *testing.T) {
	campaignLog, path := newTestLog(t)
	campaignLog.Append(testRecord(1710936000000, "spring sale"))
	require.NoError(t, campaignLog.Close())

	reader := reopen(t, path)

	hits, err := reader.Search("john")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "spring sale", hits[0].CampaignName)

	hits, err = reader.Search("nomatch")
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestCampaignLog_SearchFailedEntries(t *testing.T) {
	campaignLog, path := newTestLog(t)
	campaignLog.Append(testRecord(1710936000000, "spring sale"))
	require.NoError(t, campaignLog.Close())

	hits, err := reopen(t, path).Search("too short")

	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestCampaignLog_SentinelInContentSurvives(t *testing.T) {
	campaignLog, path := newTestLog(t)

	record := testRecord(1710936000000, "tricky")
	record.MessageTemplate = "line one\n---END_ENTRY---\nline two {name}"
	record.Successful[0].ActualMessage = "line one\n---END_ENTRY---\nline two John"
	campaignLog.Append(record)
	campaignLog.Append(testRecord(1710936000001, "after"))
	require.NoError(t, campaignLog.Close())

	reader := reopen(t, path)

	got, err := reader.GetByTimestamp(record.Timestamp)
	require.NoError(t, err)
	require.Equal(t, record, got)

	page, err := reader.List(1, 10)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
}

func TestCampaignLog_SkipsTornTrailingEntry(t *testing.T) {
	campaignLog, path := newTestLog(t)
	campaignLog.Append(testRecord(1710936000000, "complete"))
	require.NoError(t, campaignLog.Close())

	// simulate a crash mid-write: trailing bytes without a sentinel line
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = file.WriteString(`{"campaignName":"torn","timesta`)
	require.NoError(t, err)
	require.NoError(t, file.Close())

	page, err := reopen(t, path).List(1, 10)

	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Equal(t, "complete", page.Campaigns[0].CampaignName)
}

func TestCampaignLog_AppendDoesNotBlockCaller(t *testing.T) {
	campaignLog, path := newTestLog(t)
	defer campaignLog.Close()

	start := time.Now()
	campaignLog.Append(testRecord(1710936000000, "fast"))
	require.Less(t, time.Since(start), 100*time.Millisecond)

	reader := reopen(t, path)
	require.Eventually(t, func() bool {
		_, err := reader.GetByTimestamp(1710936000000)
		return err == nil
	}, time.Second, 10*time.Millisecond)
}
