package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/wiregram/wiregram-server/internal/model"
)

func menuText(configs []model.ServiceConfig) string {
	if len(configs) == 0 {
		return "You have no configs yet."
	}

	var sb strings.Builder
	sb.WriteString("Your configs:\n")
	now := time.Now()
	for _, cfg := range configs {
		state := "expired"
		if cfg.ValidTo.After(now) {
			state = "until " + cfg.ValidTo.Format("2006-01-02")
		}
		fmt.Fprintf(&sb, "• %s (%s)\n", cfg.Name, state)
	}
	return sb.String()
}

func menuButtons(configs []model.ServiceConfig) []model.Button {
	buttons := make([]model.Button, 0, len(configs)+1)
	for _, cfg := range configs {
		buttons = append(buttons, model.Button{
			Label: cfg.Name,
			Data:  "serv_choose:" + cfg.Name,
		})
	}
	buttons = append(buttons, model.Button{Label: "New config", Data: "serv_new"})
	return buttons
}

func configText(cfg model.ServiceConfig, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b>\n", cfg.Name)
	if cfg.ValidTo.After(now) {
		fmt.Fprintf(&sb, "Active until %s\n", cfg.ValidTo.Format("2006-01-02 15:04"))
	} else {
		sb.WriteString("Expired\n")
	}
	fmt.Fprintf(&sb, "Price: %.0f\nTraffic limit: %.0f GB", cfg.Price, cfg.MaxTraffic)
	return sb.String()
}

func configButtons(cfg model.ServiceConfig) []model.Button {
	return []model.Button{
		{Label: "Connection link", Data: "serv_link:" + cfg.Name},
		{Label: "Renew", Data: "serv_renew:" + cfg.Name},
		{Label: "Delete", Data: "serv_del:" + cfg.Name},
		{Label: "Back", Data: "serv_menu"},
	}
}

func paymentText(cfg model.ServiceConfig, extensionDays int) string {
	return fmt.Sprintf(
		"Renewal of <b>%s</b> for %d days costs %.0f.\nTransfer the amount and press the button below.",
		cfg.Name, extensionDays, cfg.Price)
}

func paymentButtons(configName string) []model.Button {
	return []model.Button{
		{Label: "I have paid", Data: "serv_paid:" + configName},
		{Label: "Cancel", Data: "serv_cancel:" + configName},
	}
}
