package nodestate

import (
	"fmt"

	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
)

// NotificationType represents the type of a notification message.
type NotificationType int

// NotificationCallback is used for a caller to provide a callback for
// notifications about various events.
type NotificationCallback func(*Notification)

// Constants for the type of a notification message.
const (
	// NTBlockAdded indicates the associated block was stored.
	NTBlockAdded NotificationType = iota

	// NTChainChanged indicates that the selected chain changed.
	NTChainChanged
)

// notificationTypeStrings is a map of notification types back to their
// constant names for pretty printing.
var notificationTypeStrings = map[NotificationType]string{
	NTBlockAdded:   "NTBlockAdded",
	NTChainChanged: "NTChainChanged",
}

// String returns the NotificationType in human-readable form.
func (n NotificationType) String() string {
	if s, ok := notificationTypeStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Notification Type (%d)", int(n))
}

// Notification defines notification that is sent to the caller via the
// callback function provided during the call to Subscribe. The Data field
// holds a *BlockAddedNotificationData or a *ChainChangedNotificationData,
// depending on Type.
type Notification struct {
	Type NotificationType
	Data interface{}
}

// BlockAddedNotificationData defines data to be sent along with a BlockAdded
// notification
type BlockAddedNotificationData struct {
	Block         *externalapi.DomainBlock
	BlockHash     *externalapi.DomainHash
	WasUnorphaned bool
}

// ChainChangedNotificationData defines data to be sent along with a
// ChainChanged notification
type ChainChangedNotificationData struct {
	RemovedChainBlockHashes []*externalapi.DomainHash
	AddedChainBlockHashes   []*externalapi.DomainHash

	// EvictedTransactions are the mempool transactions that no longer
	// validate on the new selected chain.
	EvictedTransactions []*externalapi.DomainTransaction
}

// Subscribe to NodeState notifications. Callbacks are called outside of
// the NodeState lock, in the order they were subscribed, on the goroutine
// that caused the notification.
func (ns *NodeState) Subscribe(callback NotificationCallback) {
	ns.notificationsLock.Lock()
	defer ns.notificationsLock.Unlock()
	ns.notifications = append(ns.notifications, callback)
}

func (ns *NodeState) sendNotifications(notifications []*Notification) {
	if len(notifications) == 0 {
		return
	}
	ns.notificationsLock.RLock()
	callbacks := ns.notifications
	ns.notificationsLock.RUnlock()

	for _, notification := range notifications {
		for _, callback := range callbacks {
			callback(notification)
		}
	}
}
