package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasttemplate"
	"go.uber.org/zap"

	"github.com/sagarregmi2056/WhatsappBulkMessage/dao"
	"github.com/sagarregmi2056/WhatsappBulkMessage/model"
	"github.com/sagarregmi2056/WhatsappBulkMessage/phone"
	"github.com/sagarregmi2056/WhatsappBulkMessage/service/dto"
	"github.com/sagarregmi2056/WhatsappBulkMessage/util"
	"github.com/sagarregmi2056/WhatsappBulkMessage/whatsapp"
)

type InvalidPayloadErr struct {
	message string
}

func (e *InvalidPayloadErr) Error() string {
	return e.message
}

func NewInvalidPayloadError(msg string) *InvalidPayloadErr {
	return &InvalidPayloadErr{message: msg}
}

type Service interface {
	//SendCampaign runs one campaign to completion and returns its record
	SendCampaign(ctx context.Context, request dto.CampaignRequest) (model.CampaignRecord, error)
	//Status reports the session state for the status endpoint
	Status() dto.Status
	//History lists completed campaigns, most recent first
	History(page, limit int) (dao.CampaignPage, error)
	//Campaign returns one full campaign record by its timestamp key
	Campaign(timestamp int64) (model.CampaignRecord, error)
	//SearchCampaigns matches campaigns by name, template or recipient data
	SearchCampaigns(query string) ([]model.CampaignRecord, error)
	//Logout discards the paired credentials and starts a fresh pairing cycle
	Logout() error
}

type service struct {
	registry    *Registry
	campaignLog dao.CampaignLog
	normalizer  *phone.Normalizer

	stampMu   sync.Mutex
	lastStamp int64
}

func NewService(registry *Registry, campaignLog dao.CampaignLog, normalizer *phone.Normalizer) Service {
	return &service{
		registry:    registry,
		campaignLog: campaignLog,
		normalizer:  normalizer,
	}
}

type pendingSend struct {
	contact model.Contact
	number  phone.Number
	message string
	future  <-chan whatsapp.Result
}

func (s *service) SendCampaign(ctx context.Context, request dto.CampaignRequest) (model.CampaignRecord, error) {
	name := strings.TrimSpace(request.CampaignName)
	template := strings.TrimSpace(request.MessageTemplate)

	if name == "" || template == "" {
		return model.CampaignRecord{}, NewInvalidPayloadError("campaign name and message template are required")
	}
	if len(request.Contacts) == 0 {
		return model.CampaignRecord{}, NewInvalidPayloadError("at least one contact is required")
	}

	session, queue := s.registry.Acquire(DefaultUser)
	if !session.Status().Ready {
		return model.CampaignRecord{}, whatsapp.ErrNotReady
	}

	record := model.CampaignRecord{
		CampaignName:    name,
		Timestamp:       s.nextStamp(),
		MessageTemplate: template,
		Successful:      []model.SentRecipient{},
		Failed:          []model.FailedRecipient{},
	}

	// a contact failing validation or normalization never skips its
	// siblings, it only lands in the failed list
	var sends []pendingSend
	for _, contact := range request.Contacts {
		contactName := strings.TrimSpace(contact.Name)
		if contactName == "" || util.IsBlank(contact.PhoneNumber) {
			record.Failed = append(record.Failed, model.FailedRecipient{
				Name:        contact.Name,
				PhoneNumber: contact.PhoneNumber,
				Error:       "name and phone number are required",
				Timestamp:   time.Now(),
			})
			continue
		}

		number, err := s.normalizer.Normalize(contact.PhoneNumber)
		if err != nil {
			record.Failed = append(record.Failed, model.FailedRecipient{
				Name:        contactName,
				PhoneNumber: contact.PhoneNumber,
				Error:       rejectionReason(err),
				Timestamp:   time.Now(),
			})
			continue
		}

		message := renderTemplate(template, contactName)
		future := queue.Enqueue(whatsapp.Task{
			ChatID:  number.Canonical,
			Message: message,
			Media:   request.Media,
		})
		sends = append(sends, pendingSend{
			contact: contact,
			number:  number,
			message: message,
			future:  future,
		})
	}

	for _, send := range sends {
		result := <-send.future
		contactName := strings.TrimSpace(send.contact.Name)
		if result.Err != nil {
			record.Failed = append(record.Failed, model.FailedRecipient{
				Name:        contactName,
				PhoneNumber: send.contact.PhoneNumber,
				Error:       result.Err.Error(),
				Timestamp:   result.Timestamp,
			})
		} else {
			record.Successful = append(record.Successful, model.SentRecipient{
				Name:            contactName,
				PhoneNumber:     send.contact.PhoneNumber,
				FormattedNumber: send.number.Canonical,
				ActualMessage:   send.message,
				Timestamp:       result.Timestamp,
			})
		}
	}

	record.Statistics = model.Statistics{
		Total:      len(request.Contacts),
		Successful: len(record.Successful),
		Failed:     len(record.Failed),
	}

	// durability is best-effort relative to the response; the response is
	// built from in-memory results either way
	s.campaignLog.Append(record)

	zap.L().Info("campaign completed",
		zap.String("campaign", name),
		zap.Int64("timestamp", record.Timestamp),
		zap.Int("total", record.Statistics.Total),
		zap.Int("successful", record.Statistics.Successful),
		zap.Int("failed", record.Statistics.Failed))

	return record, nil
}

func (s *service) Status() dto.Status {
	session, _ := s.registry.Acquire(DefaultUser)
	status := session.Status()
	return dto.Status{
		IsConnected: status.Ready,
		QRCode:      status.PairingCode,
		State:       status.State,
		LastError:   status.LastError,
	}
}

func (s *service) History(page, limit int) (dao.CampaignPage, error) {
	return s.campaignLog.List(page, limit)
}

func (s *service) Campaign(timestamp int64) (model.CampaignRecord, error) {
	return s.campaignLog.GetByTimestamp(timestamp)
}

func (s *service) SearchCampaigns(query string) ([]model.CampaignRecord, error) {
	if util.IsBlank(query) {
		return []model.CampaignRecord{}, nil
	}
	return s.campaignLog.Search(query)
}

func (s *service) Logout() error {
	session, _ := s.registry.Acquire(DefaultUser)
	return session.Reset()
}

// nextStamp returns a unique unix-milli timestamp; two campaigns started
// within the same millisecond get consecutive stamps.
func (s *service) nextStamp() int64 {
	s.stampMu.Lock()
	defer s.stampMu.Unlock()

	stamp := time.Now().UnixMilli()
	if stamp <= s.lastStamp {
		stamp = s.lastStamp + 1
	}
	s.lastStamp = stamp
	return stamp
}

// renderTemplate substitutes {name}; any other tag is kept verbatim so
// user content with braces passes through untouched.
func renderTemplate(template, name string) string {
	rendered, err := fasttemplate.ExecuteFuncStringWithErr(template, "{", "}",
		func(w io.Writer, tag string) (int, error) {
			if tag == "name" {
				return w.Write([]byte(name))
			}
			return fmt.Fprintf(w, "{%s}", tag)
		})
	if err != nil {
		// unbalanced braces; fall back to plain replacement
		return strings.ReplaceAll(template, "{name}", name)
	}
	return rendered
}

func rejectionReason(err error) string {
	reject := &phone.RejectError{}
	if errors.As(err, &reject) {
		return reject.Reason
	}
	return err.Error()
}
