package ari

import (
	"context"
	"fmt"
	"net/url"

	"github.com/PerMoeller/asterisk-ari/events"
)

// resources is the shared transport value behind every catalog binding:
// each REST call runs through the request queue against the session's
// REST client. Bindings are lightweight structs composed around it rather
// than subclasses of a common base.
type resources struct {
	client *Client
}

func (r *resources) get(ctx context.Context, path string, query url.Values, out any) error {
	_, err := r.client.queue.Do(ctx, func(ctx context.Context) (any, error) {
		return nil, r.client.rest.Get(ctx, path, query, out)
	})
	return err
}

func (r *resources) post(ctx context.Context, path string, query url.Values, body, out any) error {
	_, err := r.client.queue.Do(ctx, func(ctx context.Context) (any, error) {
		return nil, r.client.rest.Post(ctx, path, query, body, out)
	})
	return err
}

func (r *resources) put(ctx context.Context, path string, query url.Values, body, out any) error {
	_, err := r.client.queue.Do(ctx, func(ctx context.Context) (any, error) {
		return nil, r.client.rest.Put(ctx, path, query, body, out)
	})
	return err
}

func (r *resources) delete(ctx context.Context, path string, query url.Values) error {
	_, err := r.client.queue.Do(ctx, func(ctx context.Context) (any, error) {
		return nil, r.client.rest.Delete(ctx, path, query)
	})
	return err
}

// Endpoints returns the endpoint catalog.
func (c *Client) Endpoints() *EndpointService { return &EndpointService{res: c.res} }

// Sounds returns the sound catalog.
func (c *Client) Sounds() *SoundService { return &SoundService{res: c.res} }

// Mailboxes returns the mailbox catalog.
func (c *Client) Mailboxes() *MailboxService { return &MailboxService{res: c.res} }

// DeviceStates returns the device-state catalog.
func (c *Client) DeviceStates() *DeviceStateService { return &DeviceStateService{res: c.res} }

// Applications returns the Stasis application catalog.
func (c *Client) Applications() *ApplicationService { return &ApplicationService{res: c.res} }

// Asterisk returns the system-level catalog.
func (c *Client) Asterisk() *AsteriskService { return &AsteriskService{res: c.res} }

// Recordings returns the stored-recording catalog. Live recordings are
// controlled through their proxies.
func (c *Client) Recordings() *RecordingService { return &RecordingService{res: c.res} }

// EndpointService wraps the /endpoints resource.
type EndpointService struct {
	res *resources
}

func (s *EndpointService) List(ctx context.Context) ([]events.EndpointData, error) {
	var out []events.EndpointData
	err := s.res.get(ctx, "/endpoints", nil, &out)
	return out, err
}

func (s *EndpointService) ListByTech(ctx context.Context, tech string) ([]events.EndpointData, error) {
	var out []events.EndpointData
	err := s.res.get(ctx, "/endpoints/"+url.PathEscape(tech), nil, &out)
	return out, err
}

func (s *EndpointService) Get(ctx context.Context, tech, resource string) (*events.EndpointData, error) {
	var out events.EndpointData
	path := fmt.Sprintf("/endpoints/%s/%s", url.PathEscape(tech), url.PathEscape(resource))
	if err := s.res.get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendMessage sends a text message to an endpoint.
func (s *EndpointService) SendMessage(ctx context.Context, to, from, body string) error {
	query := url.Values{}
	query.Set("to", to)
	query.Set("from", from)
	query.Set("body", body)
	return s.res.put(ctx, "/endpoints/sendMessage", query, nil, nil)
}

// SoundService wraps the /sounds resource.
type SoundService struct {
	res *resources
}

func (s *SoundService) List(ctx context.Context) ([]events.SoundData, error) {
	var out []events.SoundData
	err := s.res.get(ctx, "/sounds", nil, &out)
	return out, err
}

func (s *SoundService) Get(ctx context.Context, id string) (*events.SoundData, error) {
	var out events.SoundData
	if err := s.res.get(ctx, "/sounds/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MailboxService wraps the /mailboxes resource.
type MailboxService struct {
	res *resources
}

func (s *MailboxService) List(ctx context.Context) ([]events.MailboxData, error) {
	var out []events.MailboxData
	err := s.res.get(ctx, "/mailboxes", nil, &out)
	return out, err
}

func (s *MailboxService) Get(ctx context.Context, name string) (*events.MailboxData, error) {
	var out events.MailboxData
	if err := s.res.get(ctx, "/mailboxes/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update sets the message counts of a mailbox.
func (s *MailboxService) Update(ctx context.Context, name string, oldMessages, newMessages int) error {
	query := url.Values{}
	query.Set("oldMessages", fmt.Sprintf("%d", oldMessages))
	query.Set("newMessages", fmt.Sprintf("%d", newMessages))
	return s.res.put(ctx, "/mailboxes/"+url.PathEscape(name), query, nil, nil)
}

func (s *MailboxService) Delete(ctx context.Context, name string) error {
	return s.res.delete(ctx, "/mailboxes/"+url.PathEscape(name), nil)
}

// DeviceStateService wraps the /deviceStates resource.
type DeviceStateService struct {
	res *resources
}

func (s *DeviceStateService) List(ctx context.Context) ([]events.DeviceStateData, error) {
	var out []events.DeviceStateData
	err := s.res.get(ctx, "/deviceStates", nil, &out)
	return out, err
}

func (s *DeviceStateService) Get(ctx context.Context, name string) (*events.DeviceStateData, error) {
	var out events.DeviceStateData
	if err := s.res.get(ctx, "/deviceStates/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update sets a controlled device state.
func (s *DeviceStateService) Update(ctx context.Context, name, state string) error {
	query := url.Values{}
	query.Set("deviceState", state)
	return s.res.put(ctx, "/deviceStates/"+url.PathEscape(name), query, nil, nil)
}

func (s *DeviceStateService) Delete(ctx context.Context, name string) error {
	return s.res.delete(ctx, "/deviceStates/"+url.PathEscape(name), nil)
}

// ApplicationService wraps the /applications resource.
type ApplicationService struct {
	res *resources
}

func (s *ApplicationService) List(ctx context.Context) ([]events.ApplicationData, error) {
	var out []events.ApplicationData
	err := s.res.get(ctx, "/applications", nil, &out)
	return out, err
}

func (s *ApplicationService) Get(ctx context.Context, name string) (*events.ApplicationData, error) {
	var out events.ApplicationData
	if err := s.res.get(ctx, "/applications/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Subscribe adds event sources (channel:id, bridge:id, endpoint:tech/res,
// deviceState:name) to an application's subscription.
func (s *ApplicationService) Subscribe(ctx context.Context, name string, eventSources []string) (*events.ApplicationData, error) {
	query := url.Values{}
	for _, src := range eventSources {
		query.Add("eventSource", src)
	}
	var out events.ApplicationData
	if err := s.res.post(ctx, "/applications/"+url.PathEscape(name)+"/subscription", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Unsubscribe removes event sources from an application's subscription.
func (s *ApplicationService) Unsubscribe(ctx context.Context, name string, eventSources []string) (*events.ApplicationData, error) {
	query := url.Values{}
	for _, src := range eventSources {
		query.Add("eventSource", src)
	}
	var out events.ApplicationData
	if err := s.res.delete(ctx, "/applications/"+url.PathEscape(name)+"/subscription", query); err != nil {
		return nil, err
	}
	return &out, nil
}

// Filter restricts which event types the server delivers.
func (s *ApplicationService) Filter(ctx context.Context, name string, allowed, disallowed []string) (*events.ApplicationData, error) {
	if err := s.res.client.validateMethod("applications.filter"); err != nil {
		return nil, err
	}
	type typeRef struct {
		Type string `json:"type"`
	}
	body := struct {
		Allowed    []typeRef `json:"allowed,omitempty"`
		Disallowed []typeRef `json:"disallowed,omitempty"`
	}{}
	for _, t := range allowed {
		body.Allowed = append(body.Allowed, typeRef{Type: t})
	}
	for _, t := range disallowed {
		body.Disallowed = append(body.Disallowed, typeRef{Type: t})
	}
	var out events.ApplicationData
	if err := s.res.put(ctx, "/applications/"+url.PathEscape(name)+"/eventFilter", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AsteriskService wraps the /asterisk resource.
type AsteriskService struct {
	res *resources
}

func (s *AsteriskService) Info(ctx context.Context) (*events.AsteriskInfo, error) {
	var out events.AsteriskInfo
	if err := s.res.get(ctx, "/asterisk/info", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Variable reads a global dialplan variable.
func (s *AsteriskService) Variable(ctx context.Context, name string) (string, error) {
	query := url.Values{}
	query.Set("variable", name)
	var out struct {
		Value string `json:"value"`
	}
	if err := s.res.get(ctx, "/asterisk/variable", query, &out); err != nil {
		return "", err
	}
	return out.Value, nil
}

// SetVariable writes a global dialplan variable.
func (s *AsteriskService) SetVariable(ctx context.Context, name, value string) error {
	query := url.Values{}
	query.Set("variable", name)
	query.Set("value", value)
	return s.res.post(ctx, "/asterisk/variable", query, nil, nil)
}

// RecordingService wraps the stored side of the /recordings resource.
type RecordingService struct {
	res *resources
}

func (s *RecordingService) List(ctx context.Context) ([]events.StoredRecordingData, error) {
	var out []events.StoredRecordingData
	err := s.res.get(ctx, "/recordings/stored", nil, &out)
	return out, err
}

func (s *RecordingService) Get(ctx context.Context, name string) (*events.StoredRecordingData, error) {
	var out events.StoredRecordingData
	if err := s.res.get(ctx, "/recordings/stored/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RecordingService) Delete(ctx context.Context, name string) error {
	return s.res.delete(ctx, "/recordings/stored/"+url.PathEscape(name), nil)
}

// Copy duplicates a stored recording under a new name.
func (s *RecordingService) Copy(ctx context.Context, name, destination string) (*events.StoredRecordingData, error) {
	query := url.Values{}
	query.Set("destinationRecordingName", destination)
	var out events.StoredRecordingData
	if err := s.res.post(ctx, "/recordings/stored/"+url.PathEscape(name)+"/copy", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
