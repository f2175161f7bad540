// Package notify fans service snapshots out to live WebSocket subscribers and
// the external message bus.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mesa-pos/api/internal/enum"
	"github.com/mesa-pos/api/internal/events"
	"github.com/mesa-pos/api/internal/logging"
	"github.com/mesa-pos/api/internal/service"
	"github.com/mesa-pos/api/internal/ws"
	"github.com/sirupsen/logrus"
)

const publishTimeout = 2 * time.Second

// Broadcaster is satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToTenant(tenantID uuid.UUID, event ws.Event)
}

// Notifier implements service.Notifier. Delivery failures are logged and
// never reach the caller.
type Notifier struct {
	hub Broadcaster
	bus events.Publisher
}

var _ service.Notifier = (*Notifier)(nil)

func New(hub Broadcaster, bus events.Publisher) *Notifier {
	if bus == nil {
		bus = events.Nop{}
	}
	return &Notifier{hub: hub, bus: bus}
}

func (n *Notifier) TableUpdated(ctx context.Context, view service.TableView) {
	table := view.TableID
	n.emit(ctx, enum.EventTableUpdated, view.TenantID, &table, view)
}

func (n *Notifier) OrderUpdated(ctx context.Context, order service.OrderView) {
	n.emit(ctx, enum.EventOrderUpdated, order.TenantID, order.TableID, order)
}

func (n *Notifier) BillClosed(ctx context.Context, bill service.BillView) {
	table := bill.TableID
	n.emit(ctx, enum.EventBillClosed, bill.TenantID, &table, bill)
}

func (n *Notifier) emit(ctx context.Context, eventType string, tenantID uuid.UUID, tableID *int32, data any) {
	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"event":     eventType,
		"tenant_id": tenantID,
	})

	payload, err := json.Marshal(data)
	if err != nil {
		log.WithError(err).Error("encode event payload")
		return
	}
	if n.hub != nil {
		n.hub.BroadcastToTenant(tenantID, ws.Event{Type: eventType, TableID: tableID, Payload: payload})
	}

	msg, err := events.Encode(eventType, tenantID, tableID, json.RawMessage(payload))
	if err != nil {
		log.WithError(err).Error("encode bus message")
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := n.bus.Publish(pubCtx, events.Topic(tenantID, eventType), msg); err != nil {
		log.WithError(err).Warn("publish event to bus")
	}
}

// TableReader is satisfied by *service.TableService.
type TableReader interface {
	GetTable(ctx context.Context, tenantID uuid.UUID, tableID int32) (*service.TableView, error)
	ListTables(ctx context.Context, tenantID uuid.UUID) ([]service.TableView, error)
}

// Snapshot builds the initial table.updated events for a new subscriber.
func Snapshot(tables TableReader) ws.SnapshotFunc {
	return func(ctx context.Context, tenantID uuid.UUID, table int32) ([]ws.Event, error) {
		var views []service.TableView
		if table > 0 {
			v, err := tables.GetTable(ctx, tenantID, table)
			if err != nil {
				return nil, err
			}
			views = []service.TableView{*v}
		} else {
			var err error
			if views, err = tables.ListTables(ctx, tenantID); err != nil {
				return nil, err
			}
		}

		out := make([]ws.Event, 0, len(views))
		for _, v := range views {
			payload, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			id := v.TableID
			out = append(out, ws.Event{Type: enum.EventTableUpdated, TableID: &id, Payload: payload})
		}
		return out, nil
	}
}
