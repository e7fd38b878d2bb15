package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sagarregmi2056/WhatsappBulkMessage/dao"
	"github.com/sagarregmi2056/WhatsappBulkMessage/log"
	"github.com/sagarregmi2056/WhatsappBulkMessage/model"
	"github.com/sagarregmi2056/WhatsappBulkMessage/service"
	"github.com/sagarregmi2056/WhatsappBulkMessage/service/dto"
	"github.com/sagarregmi2056/WhatsappBulkMessage/whatsapp"
)

var allowedMediaTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"video/mp4":       true,
	"application/pdf": true,
}

// SendMessages godoc
// @Summary Send campaign
// @Description Sends a personalized message to every contact of the campaign
// @Accept multipart/form-data
// @Produce json
// @Param campaignName formData string true "Campaign name"
// @Param messageTemplate formData string true "Message template, {name} is replaced per contact"
// @Param contacts formData string true "JSON array of contacts"
// @Param media formData file false "Optional image, video or pdf sent to every contact"
// @Success 200 {object} model.CampaignRecord
// @Failure 400 "error description"
// @Failure 503 "whatsapp session is not ready"
// @Router /api/send-messages [post]
func GetSendMessagesFunc(srv service.Service, maxMediaBytes int64) echo.HandlerFunc {
	return func(c echo.Context) error {
		request := dto.CampaignRequest{
			CampaignName:    c.FormValue("campaignName"),
			MessageTemplate: c.FormValue("messageTemplate"),
		}

		contactsJSON := c.FormValue("contacts")
		if strings.TrimSpace(contactsJSON) == "" {
			return c.String(http.StatusBadRequest, "contacts field is required")
		}
		if err := json.Unmarshal([]byte(contactsJSON), &request.Contacts); err != nil {
			return c.String(http.StatusBadRequest, "contacts must be a JSON array of {name, phoneNumber}")
		}

		media, err := readMedia(c, maxMediaBytes)
		if err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}
		request.Media = media

		record, err := srv.SendCampaign(c.Request().Context(), request)
		if err != nil {
			return mapError(c, err)
		}

		return c.JSON(http.StatusOK, record)
	}
}

// WhatsappStatus godoc
// @Summary Session status
// @Description Reports connection state and, while pairing, the QR payload
// @Produce json
// @Success 200 {object} dto.Status
// @Router /api/whatsapp-status [get]
func GetWhatsappStatusFunc(srv service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, srv.Status())
	}
}

// ListMessages godoc
// @Summary Campaign history
// @Description Lists completed campaigns, most recent first
// @Produce json
// @Param page query int false "Page number, starting at 1"
// @Param limit query int false "Page size, default 10"
// @Success 200 {object} dao.CampaignPage
// @Router /api/messages [get]
func GetListMessagesFunc(srv service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		page := intQueryParam(c, "page", 1)
		limit := intQueryParam(c, "limit", 10)

		result, err := srv.History(page, limit)
		if err != nil {
			return mapError(c, err)
		}

		return c.JSON(http.StatusOK, result)
	}
}

// GetMessage godoc
// @Summary Campaign by timestamp
// @Description Returns one full campaign record including recipient lists
// @Produce json
// @Param timestamp path int true "Campaign timestamp in unix milliseconds"
// @Success 200 {object} model.CampaignRecord
// @Failure 404 "campaign not found"
// @Router /api/messages/{timestamp} [get]
func GetMessageFunc(srv service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		timestamp, err := strconv.ParseInt(c.Param("timestamp"), 10, 64)
		if err != nil {
			return c.String(http.StatusBadRequest, "timestamp must be an integer")
		}

		record, err := srv.Campaign(timestamp)
		if err != nil {
			return mapError(c, err)
		}

		return c.JSON(http.StatusOK, record)
	}
}

// SearchMessages godoc
// @Summary Search campaigns
// @Description Case-insensitive substring search over names, templates and recipients
// @Produce json
// @Param q query string true "Search query"
// @Success 200 {array} model.CampaignRecord
// @Router /api/messages/search [get]
func GetSearchMessagesFunc(srv service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		hits, err := srv.SearchCampaigns(c.QueryParam("q"))
		if err != nil {
			return mapError(c, err)
		}

		return c.JSON(http.StatusOK, hits)
	}
}

// Logout godoc
// @Summary Logout
// @Description Discards the paired credentials and starts a fresh pairing cycle
// @Produce json
// @Success 200 "logged out"
// @Router /api/logout [post]
func GetLogoutFunc(srv service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := srv.Logout(); err != nil {
			return mapError(c, err)
		}

		return c.JSON(http.StatusOK, map[string]string{"status": "logged out"})
	}
}

// readMedia extracts the optional media attachment. A missing file is not an
// error; a present file must pass the type allowlist and the size cap.
func readMedia(c echo.Context, maxMediaBytes int64) (*model.Media, error) {
	fileHeader, err := c.FormFile("media")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		// no multipart form or no media part at all
		return nil, nil
	}

	if maxMediaBytes > 0 && fileHeader.Size > maxMediaBytes {
		return nil, fmt.Errorf("media exceeds the limit of %d bytes", maxMediaBytes)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("cannot read media: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("cannot read media: %w", err)
	}

	mimetype := fileHeader.Header.Get("Content-Type")
	if mimetype == "" {
		mimetype = http.DetectContentType(data)
	}
	if !allowedMediaTypes[mimetype] {
		return nil, fmt.Errorf("unsupported media type %s", mimetype)
	}

	return &model.Media{
		Data:     data,
		Mimetype: mimetype,
		FileName: fileHeader.Filename,
	}, nil
}

func intQueryParam(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func mapError(c echo.Context, err error) error {
	switch {
	case errors.As(err, new(*service.InvalidPayloadErr)):
		return c.String(http.StatusBadRequest, err.Error())
	case errors.Is(err, whatsapp.ErrNotReady):
		return c.String(http.StatusServiceUnavailable, "Whatsapp session is not ready. Scan the QR code first")
	case errors.Is(err, dao.ErrNotFound):
		return c.String(http.StatusNotFound, "Campaign not found")
	default:
		log.Error.Println(err)
		return c.String(http.StatusInternalServerError, "System malfunction. Please, try later")
	}
}
