package site

import (
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-spectra/middleware/authware"
)

// CreateRequest is the body of POST /sites.
type CreateRequest struct {
	URL  string `json:"url" form:"url"`
	Name string `json:"name" form:"name"`
}

func (r CreateRequest) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.URL, validation.Required, is.URL),
			validation.Field(&r.Name, validation.Length(0, 255)),
		)
	}, "Invalid site payload")
}

// UpdateRequest is the body of PATCH /sites/:id.
type UpdateRequest struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"isActive"`
}

func (r UpdateRequest) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Name, validation.Length(0, 255)),
		)
	}, "Invalid site payload")
}

type Controller struct {
	service *Service
}

func NewController(service *Service) *Controller {
	return &Controller{service: service}
}

// Mount registers the routes under router, every one guarded by protected.
func (a *Controller) Mount(router fiber.Router, protected fiber.Handler) {
	router.Post("/", protected, a.Create)
	router.Get("/", protected, a.List)
	router.Patch("/:id", protected, a.Update)
	router.Delete("/:id", protected, a.Remove)
}

func (a *Controller) Create(c *fiber.Ctx) error {
	uid, ok := authware.UserID(c)
	if !ok {
		return authware.ErrUnauthorized
	}

	payload := new(CreateRequest)
	if err := bindPayload(c, payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	record, err := a.service.Create(c.UserContext(), uid, payload.URL, payload.Name)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(record)
}

func (a *Controller) List(c *fiber.Ctx) error {
	uid, ok := authware.UserID(c)
	if !ok {
		return authware.ErrUnauthorized
	}

	records, err := a.service.List(c.UserContext(), uid)
	if err != nil {
		return err
	}

	return c.JSON(records)
}

func (a *Controller) Update(c *fiber.Ctx) error {
	uid, ok := authware.UserID(c)
	if !ok {
		return authware.ErrUnauthorized
	}

	id, err := parseID(c)
	if err != nil {
		return err
	}

	payload := new(UpdateRequest)
	if err := bindPayload(c, payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	count, err := a.service.Update(c.UserContext(), id, uid, Changes{
		Name:     payload.Name,
		IsActive: payload.IsActive,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"count": count})
}

func (a *Controller) Remove(c *fiber.Ctx) error {
	uid, ok := authware.UserID(c)
	if !ok {
		return authware.ErrUnauthorized
	}

	id, err := parseID(c)
	if err != nil {
		return err
	}

	count, err := a.service.Remove(c.UserContext(), id, uid)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"count": count})
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, errors.New("Validation failed (numeric string is expected)", errors.CategoryBadInput).
			WithTextCode("site_id_malformed").
			WithCode(errors.CodeBadRequest)
	}
	return id, nil
}

func bindPayload(c *fiber.Ctx, payload any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(payload); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "Invalid request body").
			WithCode(errors.CodeBadRequest)
	}
	return nil
}
