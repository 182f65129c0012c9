package models

import (
	"fmt"

	"github.com/kanzhen/bizmanage/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.DatabaseConfig) error {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	DB = db
	return nil
}

func AutoMigrate() error {
	return DB.AutoMigrate(
		&Workspace{},
		&WorkspaceMembership{},
		&User{},
		&RefreshToken{},
		&Client{},
		&Project{},
		&Quotation{},
		&QuotationItem{},
		&Invoice{},
		&InvoiceItem{},
		&Payment{},
		&FileAttachment{},
		&Conversation{},
		&ConversationMessage{},
		&SystemConfig{},
		&SystemLog{},
		&SchedulerLock{},
	)
}

func GetDB() *gorm.DB {
	return DB
}

// SeedDefaultData creates the reserved super-admin workspace and default
// system configs if not present.
func SeedDefaultData() error {
	var count int64
	DB.Model(&Workspace{}).Where("slug = ?", SuperAdminWorkspaceSlug).Count(&count)
	if count == 0 {
		ws := Workspace{
			Name:   "Super Admin",
			Slug:   SuperAdminWorkspaceSlug,
			Status: WorkspaceStatusActive,
			// No trial: the reserved workspace never expires.
			SubscriptionRef: "internal",
		}
		if err := DB.Create(&ws).Error; err != nil {
			return err
		}
	}

	defaultConfigs := []SystemConfig{
		{Key: "ldap_enabled", Value: "false", Type: "bool", Group: "ldap", Label: "Enable LDAP Authentication"},
		{Key: "ldap_host", Value: "", Type: "string", Group: "ldap", Label: "LDAP Server Host"},
		{Key: "ldap_port", Value: "389", Type: "int", Group: "ldap", Label: "LDAP Server Port"},
		{Key: "ldap_base_dn", Value: "", Type: "string", Group: "ldap", Label: "LDAP Base DN"},
		{Key: "ldap_bind_dn", Value: "", Type: "string", Group: "ldap", Label: "LDAP Bind DN"},
		{Key: "ldap_bind_password", Value: "", Type: "string", Group: "ldap", Label: "LDAP Bind Password"},
		{Key: "ldap_user_filter", Value: "(uid=%s)", Type: "string", Group: "ldap", Label: "LDAP User Filter"},
		{Key: "ldap_use_ssl", Value: "false", Type: "bool", Group: "ldap", Label: "Use SSL/TLS"},
		{Key: "default_tax_rate", Value: "0", Type: "float", Group: "billing", Label: "Default Tax Rate (%)"},
		{Key: "invoice_due_days", Value: "30", Type: "int", Group: "billing", Label: "Default Invoice Due Days"},
		{Key: "quotation_valid_days", Value: "30", Type: "int", Group: "billing", Label: "Default Quotation Validity Days"},
		{Key: "log_retention_days", Value: "30", Type: "int", Group: "system", Label: "System Log Retention Days"},
	}

	for _, cfg := range defaultConfigs {
		var n int64
		DB.Model(&SystemConfig{}).Where("key = ?", cfg.Key).Count(&n)
		if n == 0 {
			if err := DB.Create(&cfg).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
