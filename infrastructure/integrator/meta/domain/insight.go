package metadomain

type Action struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

type Cursors struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

type Paging struct {
	Cursors Cursors `json:"cursors"`
	Next    string  `json:"next"`
}

// CampaignInsight é uma linha diária do endpoint /insights com level=campaign e time_increment=1
type CampaignInsight struct {
	AccountID    string   `json:"account_id"`
	CampaignID   string   `json:"campaign_id"`
	CampaignName string   `json:"campaign_name"`
	Objective    string   `json:"objective"`
	DateStart    string   `json:"date_start"`
	DateStop     string   `json:"date_stop"`
	Spend        string   `json:"spend"`
	Impressions  string   `json:"impressions"`
	Reach        string   `json:"reach"`
	Frequency    string   `json:"frequency"`
	CPM          string   `json:"cpm"`
	CTR          string   `json:"ctr"`
	Actions      []Action `json:"actions"`
}

// Page é uma página de qualquer listagem paginada da Graph API
type Page[T any] struct {
	Data   []T    `json:"data"`
	Paging Paging `json:"paging"`
}

// Mapeamento de "objective" -> tipo de ação contada como conversão
var MetaObjectiveToActionType = map[string]string{
	"LINK_CLICKS":           "link_click",
	"POST_ENGAGEMENT":       "post_engagement",
	"PAGE_LIKES":            "like",
	"VIDEO_VIEWS":           "video_view",
	"LEAD_GENERATION":       "lead",
	"CONVERSIONS":           "offsite_conversion",
	"APP_INSTALLS":          "app_install",
	"PRODUCT_CATALOG_SALES": "offsite_conversion.fb_pixel_purchase",
	"MESSAGES":              "onsite_conversion.messaging_first_reply",
	"STORE_TRAFFIC":         "store_visit",
	"EVENT_RESPONSES":       "rsvp",
	"OUTCOME_ENGAGEMENT":    "onsite_conversion.messaging_conversation_started_7d",
	"OUTCOME_LEADS":         "lead",
	"OUTCOME_SALES":         "offsite_conversion.fb_pixel_purchase",
	"OUTCOME_TRAFFIC":       "link_click",
}

// ResultAction retorna o valor bruto da ação que representa o resultado do objetivo da campanha
func (c *CampaignInsight) ResultAction() (string, bool) {
	actionType, ok := MetaObjectiveToActionType[c.Objective]
	if !ok {
		return "", false
	}

	for _, action := range c.Actions {
		if action.ActionType == actionType {
			return action.Value, true
		}
	}

	return "", false
}
