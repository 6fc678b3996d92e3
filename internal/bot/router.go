package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/smmstore/commerce-bot/internal/telegram"
)

// Router dispatches one inbound update to the matching flow handler. It is
// the error boundary: a panicking or failing handler never takes down the
// bot instance, and every callback query gets acknowledged so the client
// UI stops its spinner.
type Router struct {
	flow      *Flow
	messenger telegram.Messenger
	logger    *slog.Logger
}

func NewRouter(flow *Flow, messenger telegram.Messenger, logger *slog.Logger) *Router {
	return &Router{
		flow:      flow,
		messenger: messenger,
		logger:    logger,
	}
}

func (r *Router) Dispatch(ctx context.Context, upd telegram.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panic", "panic", rec)
		}
	}()

	switch {
	case upd.Message != nil:
		if err := r.flow.HandleMessage(ctx, upd.Message); err != nil {
			r.logger.Error("message handler failed", "error", err, "chat_id", upd.Message.ChatID)
		}
	case upd.Callback != nil:
		r.dispatchCallback(ctx, upd.Callback)
	}
}

func (r *Router) dispatchCallback(ctx context.Context, cb *telegram.Callback) {
	decoded, err := ParseCallback(cb.Data)
	if err != nil {
		// Malformed data is acknowledged and dropped.
		r.logger.Warn("ignoring callback", "error", err, "chat_id", cb.ChatID)
		r.answer(ctx, cb.ID, "", false)
		return
	}

	switch v := decoded.(type) {
	case MainMenuCallback:
		err = r.flow.HandleMainMenu(ctx, cb)
	case CategoryCallback:
		err = r.flow.HandleCategory(ctx, cb, v.Category)
	case ServiceCallback:
		err = r.flow.HandleService(ctx, cb, v.ServiceID)
	case QuantityCallback:
		err = r.flow.HandleQuantity(ctx, cb, v.ServiceID, v.Quantity)
	case CheckPaymentCallback:
		err = r.flow.HandleCheckPayment(ctx, cb, v.OrderID)
	case MyOrdersCallback:
		err = r.flow.HandleMyOrders(ctx, cb)
	case HelpCallback:
		err = r.flow.HandleHelp(ctx, cb)
	}

	var notice *UserNotice
	switch {
	case err == nil:
		r.answer(ctx, cb.ID, "", false)
	case errors.As(err, &notice):
		r.answer(ctx, cb.ID, notice.Text, notice.Alert)
	default:
		r.logger.Error("callback handler failed", "error", err, "chat_id", cb.ChatID, "data", cb.Data)
		r.answer(ctx, cb.ID, "Something went wrong. Please try again.", true)
	}
}

func (r *Router) answer(ctx context.Context, callbackID, text string, alert bool) {
	if err := r.messenger.AnswerCallback(ctx, callbackID, text, alert); err != nil {
		r.logger.Error("failed to answer callback", "error", err, "callback_id", callbackID)
	}
}
