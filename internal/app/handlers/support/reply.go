package support

import (
	"context"
	"strings"

	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/base"
	"staybook/internal/app/queries"
	domainbooking "staybook/internal/domain/booking"
	domainsupport "staybook/internal/domain/support"
)

const (
	ReplyKey  = "support.reply"
	TopicsKey = "support.topics"
)

type ReplyQuery struct {
	UserID  string
	Message string `validate:"required,max=1000"`
}

func (q ReplyQuery) Key() string { return ReplyKey }

type ReplyHandler struct {
	base.Deps
}

func (h *ReplyHandler) Handle(ctx context.Context, q ReplyQuery) (dto.SupportReply, error) {
	sctx := domainsupport.Context{}
	if userID := strings.TrimSpace(q.UserID); userID != "" {
		active, err := h.activeBookings(ctx, userID)
		if err != nil {
			return dto.SupportReply{}, err
		}
		sctx.ActiveBookings = active
	}
	intent, reply := domainsupport.Reply(q.Message, sctx)
	return dto.SupportReply{Intent: string(intent), Reply: reply}, nil
}

func (h *ReplyHandler) activeBookings(ctx context.Context, userID string) (int, error) {
	scope, ctx, err := h.BeginReadOnly(ctx)
	if err != nil {
		return 0, err
	}
	defer scope.Close()
	bookings, err := scope.Unit.Bookings().ListByParticipant(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, b := range bookings {
		if domainbooking.BlocksAvailability(b.Status) {
			n++
		}
	}
	return n, nil
}

type TopicsQuery struct{}

func (q TopicsQuery) Key() string { return TopicsKey }

func topics(ctx context.Context, _ TopicsQuery) (dto.SupportTopics, error) {
	list := domainsupport.Topics()
	out := dto.SupportTopics{Topics: make([]dto.SupportTopic, 0, len(list))}
	for _, t := range list {
		out.Topics = append(out.Topics, dto.SupportTopic{Title: t.Title, Description: t.Description, Intent: string(t.Intent)})
	}
	return out, nil
}

func Register(queryBus *queries.InMemoryBus, deps base.Deps) {
	queries.RegisterHandler[ReplyQuery, dto.SupportReply](queryBus, ReplyKey, &ReplyHandler{Deps: deps})
	queries.RegisterHandler[TopicsQuery, dto.SupportTopics](queryBus, TopicsKey, queries.HandlerFunc[TopicsQuery, dto.SupportTopics](topics))
}
