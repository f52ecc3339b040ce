package database

import "fmt"

// Custom errors
var (
	ErrOrderNotFound     = fmt.Errorf("order not found")
	ErrOrderTypeNotFound = fmt.Errorf("order type not found")
	ErrHolderNotFound    = fmt.Errorf("holder not found")
	ErrReminderNotFound  = fmt.Errorf("reminder not found")
	ErrRuleNotFound      = fmt.Errorf("interval rule not found")
	ErrTemplateNotFound  = fmt.Errorf("email template not found")

	ErrOrderAlreadyReplaced = fmt.Errorf("order already has a replacement")

	ErrDuplicateOrderTypeCode   = fmt.Errorf("order type with this code already exists")
	ErrDuplicateRule            = fmt.Errorf("interval rule with this direction and days already exists")
	ErrDuplicatePendingReminder = fmt.Errorf("pending reminder for this order and rule already exists")
)
