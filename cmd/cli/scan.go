package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"flowdesk/internal/config"
	"flowdesk/internal/services"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	scanUserID uint
)

// scanCmd 跑一轮 overdue / due-soon 定时扫描并打印结果
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scheduled automation scan (overdue + due-soon)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()

		if err := config.InitLogger(cfg); err != nil {
			logrus.Warnf("init logger: %v", err)
		}
		appLogger := logrus.StandardLogger()

		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			cfg.Database.Host, cfg.Database.User, cfg.Database.Password, cfg.Database.Name, cfg.Database.Port)
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}

		notificationService := services.NewNotificationService(db, appLogger)
		automationService := services.NewAutomationService(db, appLogger)
		automationService.SetNotifier(notificationService)
		automationService.SetAIConfidence(cfg.Automation.AIConfidence)
		scanService := services.NewScanService(db, appLogger, automationService)
		scanService.SetDueSoonWindow(cfg.Automation.DueSoonDays)
		scanService.SetFiringCooldown(cfg.Automation.FiringCooldown)

		var filter *uint
		if scanUserID > 0 {
			filter = &scanUserID
		}
		summary := scanService.RunScheduledScans(context.Background(), time.Now(), filter)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().UintVar(&scanUserID, "user-id", 0, "restrict scan to a single user id (0 = all users)")
}
