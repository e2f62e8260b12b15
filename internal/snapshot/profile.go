package snapshot

import (
	"fmt"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/retailbill/billsync/internal/schema"
)

// Profile is the business identity printed on invoices and reminders.
//
//	[business]
//	name = "Our Store"
//	address = "123 Main Street, City"
//	phone = "+91 98765 43210"
//	email = "info@mybusiness.com"
//	gst_number = "22AAAAA0000A1Z5"
//
//	[reminders]
//	days = 3
//	template = "Dear {customer_name}, ..."
type Profile struct {
	Business  BusinessProfile `toml:"business"`
	Reminders ReminderProfile `toml:"reminders"`
}

// BusinessProfile holds contact and tax details.
type BusinessProfile struct {
	Name      string `toml:"name"`
	Address   string `toml:"address"`
	Phone     string `toml:"phone"`
	Email     string `toml:"email"`
	GSTNumber string `toml:"gst_number"`
}

// ReminderProfile configures payment reminders.
type ReminderProfile struct {
	Days     int    `toml:"days"`
	Template string `toml:"template"`
}

// DefaultProfile returns the profile a new store starts with.
func DefaultProfile() Profile {
	var p Profile
	p.apply(schema.DefaultSettings())
	return p
}

func (p *Profile) apply(settings []schema.Setting) {
	for _, s := range settings {
		switch s.Key {
		case schema.SettingBusinessName:
			p.Business.Name = s.Value
		case schema.SettingBusinessAddress:
			p.Business.Address = s.Value
		case schema.SettingBusinessPhone:
			p.Business.Phone = s.Value
		case schema.SettingBusinessEmail:
			p.Business.Email = s.Value
		case schema.SettingGSTNumber:
			p.Business.GSTNumber = s.Value
		case schema.SettingReminderDays:
			if n, err := strconv.Atoi(s.Value); err == nil {
				p.Reminders.Days = n
			}
		case schema.SettingReminderTemplate:
			p.Reminders.Template = s.Value
		}
	}
}

// Settings flattens the profile into setting rows.
func (p Profile) Settings() []schema.Setting {
	return []schema.Setting{
		{Key: schema.SettingBusinessName, Value: p.Business.Name},
		{Key: schema.SettingBusinessAddress, Value: p.Business.Address},
		{Key: schema.SettingBusinessPhone, Value: p.Business.Phone},
		{Key: schema.SettingBusinessEmail, Value: p.Business.Email},
		{Key: schema.SettingGSTNumber, Value: p.Business.GSTNumber},
		{Key: schema.SettingReminderDays, Value: strconv.Itoa(p.Reminders.Days)},
		{Key: schema.SettingReminderTemplate, Value: p.Reminders.Template},
	}
}

// LoadProfile reads a TOML profile. Keys missing from the file keep their
// defaults.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to load profile %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Profile{}, fmt.Errorf("unknown profile key %q in %s", undecoded[0].String(), path)
	}
	if p.Reminders.Days < 0 {
		return Profile{}, fmt.Errorf("reminders.days must not be negative")
	}
	return p, nil
}
