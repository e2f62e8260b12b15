package schema

// Well-known setting keys.
const (
	SettingBusinessName     = "business_name"
	SettingBusinessAddress  = "business_address"
	SettingBusinessPhone    = "business_phone"
	SettingBusinessEmail    = "business_email"
	SettingGSTNumber        = "gst_number"
	SettingReminderDays     = "reminder_days"
	SettingReminderTemplate = "reminder_template"

	// SettingLastSync holds the RFC 3339 time of the last successful sync
	// step. It describes this client only and never leaves the local store.
	SettingLastSync = "last_sync"
)

// DefaultReminderTemplate is the payment reminder sent when no template is set.
const DefaultReminderTemplate = "Dear {customer_name}, this is a reminder that payment of {amount} for invoice #{invoice_number} is due on {due_date}. Thank you! - {business_name}"

// DefaultSettings returns the business profile a new store starts with.
func DefaultSettings() []Setting {
	return []Setting{
		{Key: SettingBusinessName, Value: "Our Store"},
		{Key: SettingBusinessAddress, Value: "123 Main Street, City"},
		{Key: SettingBusinessPhone, Value: "+91 98765 43210"},
		{Key: SettingBusinessEmail, Value: "info@mybusiness.com"},
		{Key: SettingGSTNumber, Value: "22AAAAA0000A1Z5"},
		{Key: SettingReminderDays, Value: "3"},
		{Key: SettingReminderTemplate, Value: DefaultReminderTemplate},
	}
}

// IsLocalSetting reports whether key is client bookkeeping that is neither
// pushed nor overwritten by a pull.
func IsLocalSetting(key string) bool {
	return key == SettingLastSync
}
