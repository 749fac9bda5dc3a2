package http

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/vovakirdan/parley/internal/core"
	"github.com/vovakirdan/parley/internal/proto"
)

// Transport-level error codes.
const (
	ErrCodeInvalidMessage = "invalid_message"
	ErrCodeRateLimited    = "rate_limited"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// inboundToCommand decodes an inbound frame. A non-nil *core.CoreError means the
// frame was understood but rejected.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *core.CoreError) {
	switch inbound.Event {
	case proto.InboundPrivateMessage:
		var data proto.PrivateMessageData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		return &core.Command{
			Kind:        core.CommandPrivateMessage,
			RecipientID: data.RecipientID,
			Content:     data.Content,
		}, nil
	case proto.InboundJoinGroup, proto.InboundLeaveGroup:
		var data proto.GroupData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		kind := core.CommandJoinGroup
		if inbound.Event == proto.InboundLeaveGroup {
			kind = core.CommandLeaveGroup
		}
		return &core.Command{Kind: kind, GroupID: data.GroupID}, nil
	case proto.InboundGroupMessage:
		var data proto.GroupMessageData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		return &core.Command{
			Kind:    core.CommandGroupMessage,
			GroupID: data.GroupID,
			Content: data.Content,
		}, nil
	default:
		return nil, &core.CoreError{Code: ErrCodeInvalidMessage, Message: "unknown event"}
	}
}

func decodeData(raw json.RawMessage, v any) *core.CoreError {
	if len(raw) == 0 {
		return &core.CoreError{Code: ErrCodeInvalidMessage, Message: "data is required"}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &core.CoreError{Code: ErrCodeInvalidMessage, Message: "malformed data"}
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &core.CoreError{Code: core.ErrCodeValidationFailed, Message: verrs[0].Field() + " is required"}
		}
		return &core.CoreError{Code: core.ErrCodeValidationFailed, Message: "invalid data"}
	}
	return nil
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventOnlineUsers:
		online := event.Online
		if online == nil {
			online = []int64{}
		}
		return proto.Outbound{Event: proto.EventOnlineUsers, Data: online}
	case core.EventUserOnline:
		return proto.Outbound{Event: proto.EventUserOnline, Data: event.UserID}
	case core.EventUserOffline:
		return proto.Outbound{Event: proto.EventUserOffline, Data: event.UserID}
	case core.EventPrivateMessage:
		return proto.Outbound{Event: proto.EventPrivateMessage, Data: toProtoMessage(event.Message)}
	case core.EventMessageSent:
		return proto.Outbound{Event: proto.EventMessageSent, Data: toProtoMessage(event.Message)}
	case core.EventGroupMessage:
		return proto.Outbound{Event: proto.EventGroupMessage, Data: toProtoMessage(event.Message)}
	case core.EventJoinedGroup:
		return proto.Outbound{Event: proto.EventJoinedGroup, Data: toGroupAck(event.Group)}
	case core.EventLeftGroup:
		return proto.Outbound{Event: proto.EventLeftGroup, Data: toGroupAck(event.Group)}
	case core.EventUserJoinedGroup:
		return proto.Outbound{
			Event: proto.EventUserJoinedGroup,
			Data:  proto.GroupMember{GroupID: event.Group.ID, User: toProtoUser(event.User)},
		}
	case core.EventUserLeftGroup:
		return proto.Outbound{
			Event: proto.EventUserLeftGroup,
			Data:  proto.GroupMember{GroupID: event.Group.ID, User: toProtoUser(event.User)},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Event: proto.EventError, Data: proto.Error{Code: "unknown", Message: "unknown error"}}
		}
		return proto.Outbound{
			Event: proto.EventError,
			Data:  proto.Error{Code: event.Error.Code, Message: event.Error.Message},
		}
	default:
		return proto.Outbound{Event: proto.EventError, Data: proto.Error{Code: "unknown", Message: "unknown event"}}
	}
}

func toProtoUser(u core.User) proto.User {
	return proto.User{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName}
}

func toGroupAck(g core.GroupRef) proto.GroupAck {
	return proto.GroupAck{GroupID: g.ID, Name: g.Name}
}

func toProtoMessage(m core.Message) proto.Message {
	return proto.Message{
		ID:          m.ID,
		Sender:      toProtoUser(m.Sender),
		RecipientID: m.RecipientID,
		GroupID:     m.GroupID,
		Content:     m.Content,
		IsRead:      m.IsRead,
		CreatedAt:   m.CreatedAt,
	}
}

func toProtoMessages(messages []core.Message) []proto.Message {
	return lo.Map(messages, func(m core.Message, _ int) proto.Message {
		return toProtoMessage(m)
	})
}
