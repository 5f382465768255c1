package http

import (
	"time"

	"github.com/tripconnect/tripchat-server/internal/chat"
	"github.com/tripconnect/tripchat-server/internal/proto"
	"github.com/tripconnect/tripchat-server/internal/store"
)

func wireMessage(msg *store.Message) proto.WireMessage {
	wire := proto.WireMessage{
		ID:             msg.ID,
		SenderID:       msg.SenderID,
		ReceiverID:     msg.ReceiverID,
		ConversationID: msg.ConversationID,
		Message:        msg.Body,
		Date:           msg.CreatedAt.Unix(),
		Delivered:      msg.Delivered,
		Read:           msg.Read,
	}
	if msg.JourneyID != nil {
		wire.JourneyID = *msg.JourneyID
	}
	if msg.TravelingDate != nil {
		wire.TravelingDate = msg.TravelingDate.UTC().Format(time.RFC3339)
	}
	return wire
}

func wireMessages(msgs []*store.Message) []proto.WireMessage {
	wires := make([]proto.WireMessage, 0, len(msgs))
	for _, msg := range msgs {
		wires = append(wires, wireMessage(msg))
	}
	return wires
}

// historyEvent packages a join result for the requesting client.
func historyEvent(result *chat.JoinResult) *chat.Event {
	return &chat.Event{
		Kind:           chat.EventChatHistory,
		ConversationID: result.ConversationID,
		Messages:       result.History,
		Metadata:       result.Metadata,
		Typing:         result.Typing,
	}
}

// connectOutbound builds the envelopes seeding a fresh session: the
// conversation list, the unread total, and any messages that were waiting
// for delivery.
func connectOutbound(result *chat.ConnectResult) []proto.Outbound {
	outs := []proto.Outbound{
		{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventConversationList,
			Data:  conversationListData(result.Conversations),
		},
		{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUnreadTotal,
			Data:  proto.EventUnreadTotalData{TotalUnread: result.TotalUnread},
		},
	}
	for _, msg := range result.Undelivered {
		outs = append(outs, proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventReceiveMessage,
			Data:  wireMessage(msg),
		})
	}
	return outs
}

func conversationListData(summaries []*store.ConversationSummary) proto.EventConversationListData {
	entries := make([]proto.ConversationEntry, 0, len(summaries))
	for _, summary := range summaries {
		entries = append(entries, proto.ConversationEntry{
			ConversationID: summary.ConversationID,
			LastMessage:    wireMessage(summary.LastMessage),
			UnreadCount:    summary.UnreadCount,
		})
	}
	return proto.EventConversationListData{Conversations: entries}
}

func outboundFromEvent(event *chat.Event) proto.Outbound {
	switch event.Kind {
	case chat.EventReceiveMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventReceiveMessage,
			Data:  wireMessage(event.Message),
		}
	case chat.EventChatHistory:
		typing := make([]string, 0, len(event.Typing))
		for _, state := range event.Typing {
			typing = append(typing, state.UserID)
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventChatHistory,
			Data: proto.EventChatHistoryData{
				ConversationID: event.ConversationID,
				Messages:       wireMessages(event.Messages),
				Typing:         typing,
			},
		}
	case chat.EventConversationList:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventConversationList,
			Data:  conversationListData(event.Summaries),
		}
	case chat.EventConversationMetadata:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventConversationMetadata,
			Data: proto.EventConversationMetadataData{
				ConversationID: event.Metadata.ConversationID,
				UnreadCount:    event.Metadata.UnreadCount,
				LastUpdated:    event.Metadata.LastUpdated.Unix(),
			},
		}
	case chat.EventMessageDelivered:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageDelivered,
			Data: proto.EventMessageDeliveredData{
				ConversationID: event.ConversationID,
				MessageIDs:     event.MessageIDs,
				Timestamp:      event.Timestamp.Unix(),
			},
		}
	case chat.EventMessagesRead:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessagesRead,
			Data: proto.EventMessagesReadData{
				ConversationID: event.ConversationID,
				MessageIDs:     event.MessageIDs,
				ReaderID:       event.UserID,
			},
		}
	case chat.EventUserTyping:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserTyping,
			Data: proto.EventUserTypingData{
				ConversationID: event.ConversationID,
				SenderID:       event.UserID,
				IsTyping:       event.IsTyping,
			},
		}
	case chat.EventPresenceUpdate:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPresenceUpdate,
			Data: proto.EventPresenceUpdateData{
				UserID: event.UserID,
				Online: event.Online,
			},
		}
	case chat.EventUnreadTotal:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUnreadTotal,
			Data:  proto.EventUnreadTotalData{TotalUnread: event.TotalUnread},
		}
	case chat.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
