package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/client"
	"github.com/spec-kit/servicedesk/internal/desk"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/inventory"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

type runFunc func(ctx context.Context, s *session, args []string) error

type command struct {
	usage string
	args  int
	setup func(fs *pflag.FlagSet) runFunc
}

var commandOrder = []string{
	"login", "tickets", "ticket", "create-ticket", "technicians", "assign",
	"catalog", "accept", "start", "complete", "contract-create", "contract", "contract-assign",
}

var commands = map[string]command{
	"login": {usage: "--email E --password P", setup: func(fs *pflag.FlagSet) runFunc {
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password")
		return func(ctx context.Context, s *session, _ []string) error {
			sess, err := s.client.Login(ctx, *email, *password)
			if err != nil {
				return err
			}
			fmt.Printf("export DESK_TOKEN=%s\nexport DESK_USER_ID=%s\n", sess.Token, sess.User.ID)
			return nil
		}
	}},
	"tickets": {usage: "[--status a,b] [--display open] [--customer ID] [--page N]", setup: func(fs *pflag.FlagSet) runFunc {
		statuses := fs.StringSlice("status", nil, "lifecycle statuses")
		display := fs.String("display", "", "display status: open, in-progress, resolved, closed")
		customer := fs.String("customer", "", "list one customer's tickets")
		assignee := fs.String("assigned-to", "", "technician id")
		search := fs.StringP("query", "q", "", "search title and description")
		page := fs.Int("page", 1, "page number")
		perPage := fs.Int("per-page", 15, "page size")
		return func(ctx context.Context, s *session, _ []string) error {
			query := desk.TicketQuery{
				Page:       *page,
				PerPage:    *perPage,
				Display:    domain.DisplayStatus(*display),
				CustomerID: *customer,
				AssignedTo: *assignee,
				Search:     *search,
			}
			for _, st := range *statuses {
				query.Statuses = append(query.Statuses, domain.TicketStatus(st))
			}
			if _, err := s.tickets.Refresh(ctx, query); err != nil {
				return err
			}
			for _, t := range s.tickets.Tickets(query.Display) {
				printTicketRow(t)
			}
			p := s.tickets.Pagination()
			fmt.Printf("page %d of %d (%d tickets)\n", p.CurrentPage, p.LastPage, p.Total)
			return nil
		}
	}},
	"ticket": {usage: "<ticket-id>", args: 1, setup: func(fs *pflag.FlagSet) runFunc {
		return func(ctx context.Context, s *session, args []string) error {
			t, err := s.tickets.RefreshTicket(ctx, args[0])
			if err != nil {
				return err
			}
			printTicket(t)
			return nil
		}
	}},
	"create-ticket": {usage: "--customer ID --title T [--description D] [--priority P] [--photo FILE]...", setup: func(fs *pflag.FlagSet) runFunc {
		customer := fs.String("customer", "", "customer id")
		title := fs.String("title", "", "ticket title")
		description := fs.String("description", "", "ticket description")
		priority := fs.String("priority", "", "low, medium, high or urgent")
		photos := fs.StringArray("photo", nil, "photo file to attach, repeatable")
		return func(ctx context.Context, s *session, _ []string) error {
			input := client.NewTicket{
				CustomerID:  *customer,
				Title:       *title,
				Description: *description,
				Priority:    domain.TicketPriority(*priority),
			}
			for _, path := range *photos {
				content, err := os.ReadFile(path)
				if err != nil {
					return apperrors.NewValidationError(fmt.Sprintf("cannot read %s", path), nil)
				}
				input.Photos = append(input.Photos, client.Photo{Name: filepath.Base(path), Content: content})
			}
			t, err := s.client.CreateTicket(ctx, input)
			if err != nil {
				return err
			}
			printTicket(t)
			return nil
		}
	}},
	"technicians": {setup: func(fs *pflag.FlagSet) runFunc {
		return func(ctx context.Context, s *session, _ []string) error {
			picker := s.tickets.LoadTechnicians(ctx)
			if !picker.Enabled {
				fmt.Printf("assignment unavailable: %s\n", picker.Reason)
				return nil
			}
			for _, u := range picker.Technicians {
				fmt.Printf("%s\t%s\t%s\n", u.ID, u.Name, u.Email)
			}
			return nil
		}
	}},
	"assign": {usage: "<ticket-id> <technician-id>", args: 2, setup: func(fs *pflag.FlagSet) runFunc {
		return func(ctx context.Context, s *session, args []string) error {
			if picker := s.tickets.LoadTechnicians(ctx); !picker.Enabled {
				return apperrors.NewValidationError("assignment unavailable: "+picker.Reason, nil)
			}
			t, err := s.tickets.AssignTicket(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			printTicket(t)
			return nil
		}
	}},
	"catalog": {setup: func(fs *pflag.FlagSet) runFunc {
		return func(ctx context.Context, s *session, _ []string) error {
			catalog, err := s.tickets.Catalog(ctx)
			if err != nil {
				return err
			}
			if catalog.Empty() {
				fmt.Println("no inventory")
				return nil
			}
			for _, item := range catalog.Items() {
				fmt.Printf("%s\t%s\t%d\t%s\n", item.ID, item.ProductName, item.AvailableQuantity, item.UnitPrice.StringFixed(2))
			}
			return nil
		}
	}},
	"accept": {usage: "<ticket-id> [--item ID=QTY]... [--note N]", args: 1, setup: func(fs *pflag.FlagSet) runFunc {
		items := fs.StringArray("item", nil, "inventory line as ID=QTY, repeatable")
		note := fs.String("note", "", "note for the inventory manifest")
		return func(ctx context.Context, s *session, args []string) error {
			lines, err := parseLines(*items)
			if err != nil {
				return err
			}
			t, err := s.tickets.AcceptTicket(ctx, args[0], lines, *note)
			if err != nil {
				return err
			}
			printTicket(t)
			return nil
		}
	}},
	"start": {usage: "<ticket-id>", args: 1, setup: func(fs *pflag.FlagSet) runFunc {
		return func(ctx context.Context, s *session, args []string) error {
			t, err := s.tickets.StartTicket(ctx, args[0])
			if err != nil {
				return err
			}
			printTicket(t)
			return nil
		}
	}},
	"complete": {usage: "<ticket-id>", args: 1, setup: func(fs *pflag.FlagSet) runFunc {
		return func(ctx context.Context, s *session, args []string) error {
			t, err := s.tickets.CompleteTicket(ctx, args[0])
			if err != nil {
				return err
			}
			printTicket(t)
			return nil
		}
	}},
	"contract-create": {usage: "--customer ID --type T --purchase DATE --visit DATE[:NOTE]...", setup: func(fs *pflag.FlagSet) runFunc {
		branch := fs.String("branch", "", "branch id")
		customer := fs.String("customer", "", "customer id")
		contractType := fs.String("type", "", "contract type")
		purchase := fs.String("purchase", "", "purchase date (YYYY-MM-DD)")
		warranty := fs.String("warranty-end", "", "warranty end date (YYYY-MM-DD)")
		amount := fs.String("amount", "", "contract amount")
		notes := fs.String("notes", "", "contract notes")
		visits := fs.StringArray("visit", nil, "scheduled visit as DATE[:NOTE], repeatable")
		return func(ctx context.Context, s *session, _ []string) error {
			fields, err := contractFields(*branch, *customer, *contractType, *purchase, *warranty, *amount, *notes)
			if err != nil {
				return err
			}
			draft := desk.NewContractDraft(fields)
			for _, v := range *visits {
				occ, err := parseVisit(v)
				if err != nil {
					return err
				}
				if _, err := draft.AddOccurrence(occ); err != nil {
					return err
				}
			}
			view, err := s.contracts.Submit(ctx, draft)
			if err != nil {
				return err
			}
			printContract(view)
			return nil
		}
	}},
	"contract": {usage: "<contract-id>", args: 1, setup: func(fs *pflag.FlagSet) runFunc {
		return func(ctx context.Context, s *session, args []string) error {
			view, err := s.contracts.Refresh(ctx, args[0])
			if err != nil {
				return err
			}
			printContract(view)
			return nil
		}
	}},
	"contract-assign": {usage: "<contract-id> <maintenance-id> <technician-id>", args: 3, setup: func(fs *pflag.FlagSet) runFunc {
		return func(ctx context.Context, s *session, args []string) error {
			if _, err := s.contracts.Refresh(ctx, args[0]); err != nil {
				return err
			}
			if picker := s.contracts.LoadTechnicians(ctx); !picker.Enabled {
				return apperrors.NewValidationError("assignment unavailable: "+picker.Reason, nil)
			}
			if _, err := s.contracts.AssignTechnician(ctx, args[1], args[2]); err != nil {
				return err
			}
			// The refresh may predate the write; the desk keeps the assignment either way.
			view, err := s.contracts.Refresh(ctx, args[0])
			if err != nil {
				s.logger.Sugar().Warnf("refresh after assignment: %v", err)
				view, _ = s.contracts.Contract(args[0])
			}
			printContract(view)
			return nil
		}
	}},
}

// parseLines reads ID=QTY pairs.
func parseLines(items []string) ([]inventory.Line, error) {
	lines := make([]inventory.Line, 0, len(items))
	for i, item := range items {
		id, qty, ok := strings.Cut(item, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, apperrors.NewValidationError("items must be ID=QTY",
				map[string]any{fmt.Sprintf("items[%d]", i): item})
		}
		n, err := strconv.Atoi(strings.TrimSpace(qty))
		if err != nil {
			return nil, apperrors.NewValidationError("quantity must be a whole number",
				map[string]any{fmt.Sprintf("items[%d]", i): item})
		}
		lines = append(lines, inventory.Line{ItemID: id, Quantity: n})
	}
	return lines, nil
}

// parseVisit reads DATE[:NOTE]. An empty date is kept so the draft reports it.
func parseVisit(value string) (desk.OccurrenceDraft, error) {
	date, note, _ := strings.Cut(value, ":")
	occ := desk.OccurrenceDraft{Note: strings.TrimSpace(note)}
	if strings.TrimSpace(date) == "" {
		return occ, nil
	}
	t, err := dto.ParseDate(date)
	if err != nil {
		return occ, apperrors.NewValidationError("visit dates must be YYYY-MM-DD",
			map[string]any{"scheduled_date": date})
	}
	occ.ScheduledDate = t
	return occ, nil
}

func contractFields(branch, customer, contractType, purchase, warranty, amount, notes string) (desk.ContractFields, error) {
	fields := desk.ContractFields{BranchID: branch, CustomerID: customer, ContractType: contractType, Notes: notes}
	details := map[string]any{}
	if purchase != "" {
		t, err := dto.ParseDate(purchase)
		if err != nil {
			details["purchase_date"] = "must be a date (YYYY-MM-DD)"
		}
		fields.PurchaseDate = t
	}
	if warranty != "" {
		t, err := dto.ParseDate(warranty)
		if err != nil {
			details["warranty_end_date"] = "must be a date (YYYY-MM-DD)"
		} else {
			fields.WarrantyEndsAt = &t
		}
	}
	if amount != "" {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			details["amount"] = "must be a number"
		} else {
			fields.Amount = &d
		}
	}
	if len(details) > 0 {
		return fields, apperrors.NewValidationError("invalid contract", details)
	}
	return fields, nil
}

func printTicketRow(t domain.Ticket) {
	assignee := "-"
	if t.AssignedTo != nil {
		assignee = *t.AssignedTo
	}
	fmt.Printf("%s\t%-11s\t%-8s\t%s\t%s\n", t.ID, domain.DisplayStatusOf(t.Status), t.Priority, assignee, t.Title)
}

func printTicket(t *domain.Ticket) {
	if t == nil {
		return
	}
	assignee := "-"
	if t.AssignedTo != nil {
		assignee = *t.AssignedTo
	}
	fmt.Printf("ticket     %s\n", t.ID)
	fmt.Printf("title      %s\n", t.Title)
	fmt.Printf("status     %s (%s)\n", t.Status, domain.DisplayStatusOf(t.Status))
	fmt.Printf("priority   %s\n", t.Priority)
	fmt.Printf("assignee   %s\n", assignee)
	fmt.Printf("accepted   %s\n", formatTime(t.AcceptedAt))
	fmt.Printf("completed  %s\n", formatTime(t.CompletedAt))
	for _, p := range t.Photos {
		fmt.Printf("photo      %s\n", p)
	}
}

func printContract(v *desk.ContractView) {
	if v == nil {
		return
	}
	c := v.Contract
	fmt.Printf("contract   %s (%s)\n", c.ID, c.ContractType)
	fmt.Printf("customer   %s\n", c.CustomerID)
	fmt.Printf("purchased  %s\n", c.PurchaseDate.Format(time.DateOnly))
	if c.Amount != nil {
		fmt.Printf("amount     %s\n", c.Amount.StringFixed(2))
	}
	for _, occ := range v.Occurrences {
		fmt.Printf("  %s  %s\n", occ.ID, occ)
	}
}
