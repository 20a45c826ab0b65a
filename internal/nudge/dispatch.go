package nudge

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/wishpair/internal/cadence"
	"github.com/hpungsan/wishpair/internal/wish"
)

// Delivery channels.
const (
	ChannelExpo      = "expo"
	ChannelSimulated = "simulated"
)

// Simulated delivery reasons.
const (
	ReasonMissingToken = "missing_push_token"
	ReasonInvalidToken = "invalid_push_token"
)

// Recipient is a pair member to notify.
type Recipient struct {
	UserID     string
	PushToken  *string
	NudgeLevel int
}

// Delivery records what happened for one recipient.
type Delivery struct {
	UserID  string      `json:"userId"`
	Channel string      `json:"channel"`
	Sent    bool        `json:"sent"`
	Reason  string      `json:"reason,omitempty"`
	Message string      `json:"message,omitempty"`
	Result  *PushTicket `json:"expo,omitempty"`
}

// Dispatcher fans a nudge out to the members of a pair.
type Dispatcher struct {
	gateway PushGateway
	enabled bool
	pick    cadence.Picker
	log     *logrus.Logger
}

// NewDispatcher creates a Dispatcher. With enabled false (or no gateway)
// every delivery goes through the simulated channel.
func NewDispatcher(gateway PushGateway, enabled bool, pick cadence.Picker, log *logrus.Logger) *Dispatcher {
	if pick == nil {
		pick = globalPicker{}
	}
	return &Dispatcher{
		gateway: gateway,
		enabled: enabled && gateway != nil,
		pick:    pick,
		log:     log,
	}
}

// Deliver sends one nudge about w to every recipient. It never fails: each
// recipient gets exactly one Delivery, in recipient order.
func (d *Dispatcher) Deliver(ctx context.Context, pairID string, w *wish.Wish, recipients []Recipient) []Delivery {
	body := cadence.NudgeMessage(w.Title, d.pick)
	out := make([]Delivery, len(recipients))

	if !d.enabled {
		for i, r := range recipients {
			out[i] = Delivery{UserID: r.UserID, Channel: ChannelSimulated, Sent: true, Message: body}
		}
		return out
	}

	// Index into the push batch for each recipient, or -1.
	batchIndex := make([]int, len(recipients))
	var batch []PushMessage
	for i, r := range recipients {
		batchIndex[i] = -1
		switch {
		case r.PushToken == nil || *r.PushToken == "":
			out[i] = Delivery{UserID: r.UserID, Channel: ChannelSimulated, Sent: true, Reason: ReasonMissingToken, Message: body}
		case !ValidPushToken(*r.PushToken):
			out[i] = Delivery{UserID: r.UserID, Channel: ChannelSimulated, Sent: true, Reason: ReasonInvalidToken, Message: body}
		default:
			batchIndex[i] = len(batch)
			batch = append(batch, PushMessage{
				To:    *r.PushToken,
				Sound: "default",
				Title: PushTitle,
				Body:  body,
				Data:  map[string]string{"pairId": pairID, "wishId": w.ID},
			})
		}
	}

	if len(batch) == 0 {
		return out
	}

	tickets, err := d.gateway.Send(ctx, batch)
	if err != nil {
		if d.log != nil {
			d.log.WithFields(logrus.Fields{
				"pair_id":    pairID,
				"recipients": len(batch),
			}).WithError(err).Warn("push batch failed")
		}
		for i, r := range recipients {
			if batchIndex[i] >= 0 {
				out[i] = Delivery{UserID: r.UserID, Channel: ChannelExpo, Sent: false, Reason: err.Error(), Message: body}
			}
		}
		return out
	}

	for i, r := range recipients {
		idx := batchIndex[i]
		if idx < 0 {
			continue
		}
		var ticket PushTicket
		if idx < len(tickets) {
			ticket = tickets[idx]
		}
		out[i] = Delivery{
			UserID:  r.UserID,
			Channel: ChannelExpo,
			Sent:    ticket.Status == "ok",
			Message: body,
			Result:  &ticket,
		}
		if !out[i].Sent && ticket.Message != "" {
			out[i].Reason = ticket.Message
		}
	}
	return out
}
