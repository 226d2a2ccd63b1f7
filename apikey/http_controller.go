package apikey

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-spectra/middleware/authware"
)

// CreateRequest is the body of POST /api-keys.
type CreateRequest struct {
	Name string `json:"name" form:"name"`
}

func (r CreateRequest) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Name, validation.Length(0, 255)),
		)
	}, "Invalid api key payload")
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
	router.Delete("/:id", protected, a.Revoke)
}

func (a *Controller) Create(c *fiber.Ctx) error {
	uid, ok := authware.UserID(c)
	if !ok {
		return authware.ErrUnauthorized
	}

	payload := new(CreateRequest)
	if len(c.Body()) > 0 {
		if err := c.BodyParser(payload); err != nil {
			return errors.Wrap(err, errors.CategoryBadInput, "Invalid request body").
				WithCode(errors.CodeBadRequest)
		}
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	record, err := a.service.Create(c.UserContext(), uid, payload.Name)
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

func (a *Controller) Revoke(c *fiber.Ctx) error {
	uid, ok := authware.UserID(c)
	if !ok {
		return authware.ErrUnauthorized
	}

	count, err := a.service.Revoke(c.UserContext(), uid, c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"count": count})
}
