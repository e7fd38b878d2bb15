package whatsapp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/sagarregmi2056/WhatsappBulkMessage/log"
	"github.com/sagarregmi2056/WhatsappBulkMessage/model"
)

// MeowFactory builds transports backed by the WhatsApp Web multidevice
// protocol client. Credentials live in the sqlite store the client manages
// itself; logging out removes them.
type MeowFactory struct {
	container *sqlstore.Container
}

func NewMeowFactory(dbPath string) (*MeowFactory, error) {
	container, err := sqlstore.New("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", dbPath), waLog.Noop)
	if err != nil {
		return nil, err
	}
	return &MeowFactory{container: container}, nil
}

func (f *MeowFactory) NewTransport(sink EventSink) (Transport, error) {
	device, err := f.container.GetFirstDevice()
	if err != nil {
		return nil, err
	}

	client := whatsmeow.NewClient(device, waLog.Stdout("whatsmeow", "WARN", true))

	t := &meowTransport{client: client, sink: sink}
	t.handlerID = client.AddEventHandler(t.handleEvent)

	return t, nil
}

type meowTransport struct {
	client    *whatsmeow.Client
	sink      EventSink
	handlerID uint32
	closeOnce sync.Once
}

func (t *meowTransport) Connect(ctx context.Context) error {
	if t.client.Store.ID == nil {
		// no stored credentials, a pairing cycle is needed
		qrChan, err := t.client.GetQRChannel(ctx)
		if err != nil {
			return err
		}
		go t.forwardQR(qrChan)
	}

	return t.client.Connect()
}

func (t *meowTransport) forwardQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		switch item.Event {
		case "code":
			t.sink.Publish(PairingEvent{Code: item.Code})
		case "success":
			// pairing accepted; Connected event follows separately
		case "timeout":
			t.sink.Publish(DisconnectedEvent{Reason: "pairing code expired"})
		default:
			log.Trace.Println("QR channel event", item.Event)
		}
	}
}

func (t *meowTransport) handleEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.PairSuccess:
		t.sink.Publish(AuthenticatedEvent{})
	case *events.Connected:
		t.sink.Publish(ReadyEvent{})
	case *events.Disconnected:
		t.sink.Publish(DisconnectedEvent{Reason: "transport dropped"})
	case *events.StreamReplaced:
		t.sink.Publish(DisconnectedEvent{Reason: "stream replaced by another client"})
	case *events.LoggedOut:
		t.sink.Publish(DisconnectedEvent{Reason: fmt.Sprintf("logged out remotely: %v", e.Reason)})
	}
}

func (t *meowTransport) SendText(ctx context.Context, chatID, text string) error {
	_, err := t.client.SendMessage(ctx, t.jid(chatID), &waProto.Message{
		Conversation: proto.String(text),
	})
	return err
}

func (t *meowTransport) SendMedia(ctx context.Context, chatID, caption string, media model.Media) error {
	uploaded, err := t.client.Upload(ctx, media.Data, uploadType(media.Mimetype))
	if err != nil {
		return err
	}

	length := uint64(len(media.Data))
	var msg *waProto.Message

	switch {
	case strings.HasPrefix(media.Mimetype, "image/"):
		msg = &waProto.Message{ImageMessage: &waProto.ImageMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(media.Mimetype),
			Url:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSha256: uploaded.FileEncSHA256,
			FileSha256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(length),
		}}
	case strings.HasPrefix(media.Mimetype, "video/"):
		msg = &waProto.Message{VideoMessage: &waProto.VideoMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(media.Mimetype),
			Url:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSha256: uploaded.FileEncSHA256,
			FileSha256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(length),
		}}
	default:
		msg = &waProto.Message{DocumentMessage: &waProto.DocumentMessage{
			Title:         proto.String(media.FileName),
			FileName:      proto.String(media.FileName),
			Caption:       proto.String(caption),
			Mimetype:      proto.String(media.Mimetype),
			Url:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSha256: uploaded.FileEncSHA256,
			FileSha256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(length),
		}}
	}

	_, err = t.client.SendMessage(ctx, t.jid(chatID), msg)
	return err
}

func (t *meowTransport) IsLoggedIn() bool {
	return t.client.IsLoggedIn()
}

func (t *meowTransport) Logout() error {
	return t.client.Logout()
}

func (t *meowTransport) Close() {
	t.closeOnce.Do(func() {
		t.client.RemoveEventHandler(t.handlerID)
		t.client.Disconnect()
	})
}

func (t *meowTransport) jid(chatID string) types.JID {
	return types.NewJID(chatID, types.DefaultUserServer)
}

func uploadType(mimetype string) whatsmeow.MediaType {
	switch {
	case strings.HasPrefix(mimetype, "image/"):
		return whatsmeow.MediaImage
	case strings.HasPrefix(mimetype, "video/"):
		return whatsmeow.MediaVideo
	default:
		return whatsmeow.MediaDocument
	}
}
