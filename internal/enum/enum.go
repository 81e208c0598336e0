package enum

// Status values are CHECK constrained in the schema; keep both in sync.

const (
	OrderStatusPending   = "PENDING"
	OrderStatusPreparing = "PREPARING"
	OrderStatusReady     = "READY"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

const (
	TableStatusFree     = "FREE"
	TableStatusOccupied = "OCCUPIED"
	TableStatusReserved = "RESERVED"
	TableStatusCleaning = "CLEANING"
)

const (
	ReservationStatusConfirmed = "CONFIRMED"
	ReservationStatusSeated    = "SEATED"
	ReservationStatusFinished  = "FINISHED"
	ReservationStatusCancelled = "CANCELLED"
)

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusPaid      = "PAID"
	PaymentStatusCancelled = "CANCELLED"
)

const (
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
	UserRoleWaiter  = "WAITER"
	UserRoleKitchen = "KITCHEN"
)

// Payment methods carry no DB constraint so new ones only need a constant.
const (
	PaymentMethodCash     = "CASH"
	PaymentMethodTransfer = "TRANSFER"
	PaymentMethodCard     = "CARD"
)
