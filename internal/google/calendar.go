package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"meetsync/internal/models"
)

const (
	credentialsFile = "credentials.json"
)

// CalendarClient provides a client for interacting with the Google Calendar API.
type CalendarClient struct {
	service     *calendar.Service
	calendarIDs []string
	logger      *slog.Logger
}

// NewClient creates a new Google Calendar client over the given calendars.
// It handles loading credentials and setting up an authenticated HTTP client.
// It supports multiple accounts by looking for token files like token-user1.json, token-user2.json, etc.
// The accountName is used to find the correct token file.
func NewClient(ctx context.Context, logger *slog.Logger, clientID, clientSecret, accountName string, calendarIDs []string) (*CalendarClient, error) {
	config, err := getOAuthConfig(clientID, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	tokenFile := fmt.Sprintf("token-%s.json", accountName)
	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", accountName, err)
	}

	client := config.Client(ctx, token)
	service, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	if len(calendarIDs) == 0 {
		calendarIDs = []string{"primary"}
	}
	return &CalendarClient{service: service, calendarIDs: calendarIDs, logger: logger}, nil
}

// GetEvents fetches events overlapping [start, end) from every configured
// calendar. Recurring meetings are expanded to single instances; the series
// id is carried on each instance.
func (c *CalendarClient) GetEvents(ctx context.Context, start, end time.Time) ([]*models.Event, error) {
	c.logger.Debug("Fetching events", "start", start, "end", end)

	var all []*models.Event
	for _, calID := range c.calendarIDs {
		events, err := c.service.Events.List(calID).
			Context(ctx).
			ShowDeleted(false).
			SingleEvents(true).
			TimeMin(start.Format(time.RFC3339)).
			TimeMax(end.Format(time.RFC3339)).
			OrderBy("startTime").
			Do()
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve events for %s: %w", calID, err)
		}
		all = append(all, c.toInternalEvents(events.Items, calID)...)
	}

	c.logger.Info("Successfully fetched events from Google Calendar", "count", len(all))
	return all, nil
}

// toInternalEvents converts Google Calendar events to the internal Event model.
func (c *CalendarClient) toInternalEvents(googleEvents []*calendar.Event, source string) []*models.Event {
	var internalEvents []*models.Event
	for _, item := range googleEvents {
		// Skip events without a start time (e.g., all-day events without a specific time)
		if item.Start == nil || item.Start.DateTime == "" {
			continue
		}

		startTime, _ := time.Parse(time.RFC3339, item.Start.DateTime)
		endTime, _ := time.Parse(time.RFC3339, item.End.DateTime)

		var attendeeList []models.Attendee
		for _, a := range item.Attendees {
			attendeeList = append(attendeeList, models.Attendee{
				Email:       a.Email,
				DisplayName: a.DisplayName,
				Response:    toResponseStatus(a.ResponseStatus),
				Resource:    a.Resource,
			})
		}

		var organizer string
		if item.Organizer != nil {
			organizer = item.Organizer.Email
		}

		event := &models.Event{
			ID:        item.Id,
			SeriesID:  item.RecurringEventId,
			Title:     item.Summary,
			StartTime: startTime,
			EndTime:   endTime,
			Organizer: organizer,
			Attendees: attendeeList,
			Source:    fmt.Sprintf("google-%s", source),
		}
		internalEvents = append(internalEvents, event)
	}
	return internalEvents
}

func toResponseStatus(s string) models.ResponseStatus {
	switch s {
	case "accepted":
		return models.ResponseAccepted
	case "declined":
		return models.ResponseDeclined
	case "tentative":
		return models.ResponseTentative
	default:
		return models.ResponseUnknown
	}
}

// GetOAuthConfigForAuthFlow is used by the auth command to get the config for the web flow.
func GetOAuthConfigForAuthFlow(clientID, clientSecret string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes environment variables over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{calendar.CalendarReadonlyScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the root directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = "urn:ietf:wg:oauth:2.0:oob" // For desktop app flow
	return config, nil
}

// TokenFromWeb is called by the auth flow to retrieve a token.
func TokenFromWeb(config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(context.Background(), authCode)
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// GetTokenAccounts lists the account names that have stored tokens.
func GetTokenAccounts() ([]string, error) {
	files, err := os.ReadDir(".")
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, file := range files {
		if strings.HasPrefix(file.Name(), "token-") && strings.HasSuffix(file.Name(), ".json") {
			accountName := strings.TrimSuffix(strings.TrimPrefix(file.Name(), "token-"), ".json")
			accounts = append(accounts, accountName)
		}
	}
	return accounts, nil
}
