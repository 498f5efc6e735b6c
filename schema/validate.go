package schema

// validateClosed ensures every type reference in the schema resolves to a
// known definition (spec.md §4.1: "Fails with InvalidSchema when: unknown
// type reference").
func (s *Schema) validateClosed() error {
	check := func(where string, te *TypeExpr) error {
		if te == nil {
			return nil
		}
		if err := te.Validate(); err != nil {
			return err
		}
		if _, ok := s.GetType(te.BaseType); !ok {
			return newInvalidSchema("%s: unknown type %q", where, te.BaseType)
		}
		return nil
	}

	for _, o := range s.objects {
		for _, iface := range o.Interfaces {
			if _, ok := s.interfaces[iface]; !ok {
				return newInvalidSchema("object %q implements unknown interface %q", o.Name, iface)
			}
		}
		for _, f := range o.Fields {
			if err := check("object "+o.Name+"."+f.Name, f.Type); err != nil {
				return err
			}
			for _, a := range f.Args {
				if err := check("object "+o.Name+"."+f.Name+"("+a.Name+")", a.Type); err != nil {
					return err
				}
			}
		}
	}
	for _, i := range s.interfaces {
		for _, ext := range i.Extends {
			if _, ok := s.interfaces[ext]; !ok {
				return newInvalidSchema("interface %q extends unknown interface %q", i.Name, ext)
			}
		}
		for _, f := range i.Fields {
			if err := check("interface "+i.Name+"."+f.Name, f.Type); err != nil {
				return err
			}
		}
	}
	for _, u := range s.unions {
		for _, m := range u.Members {
			if _, ok := s.objects[m]; !ok {
				return newInvalidSchema("union %q has unknown member %q", u.Name, m)
			}
		}
	}
	for _, in := range s.inputs {
		for _, f := range in.Fields {
			if err := check("input "+in.Name+"."+f.Name, f.Type); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateDirectiveUsage checks that applied directives are declared and
// used only at declared locations.
func (s *Schema) validateDirectiveUsage() error {
	checkApplied := func(where string, loc DirectiveLocation, applied []*AppliedDirective) error {
		for _, ad := range applied {
			def, ok := s.directives[ad.Name]
			if !ok {
				return newInvalidSchema("%s: unknown directive @%s", where, ad.Name)
			}
			allowed := false
			for _, l := range def.Locations {
				if l == loc {
					allowed = true
					break
				}
			}
			if !allowed {
				return newInvalidSchema("%s: directive @%s not allowed at location %s", where, ad.Name, loc)
			}
		}
		return nil
	}

	for _, o := range s.objects {
		if err := checkApplied("object "+o.Name, LocationObject, o.Directives); err != nil {
			return err
		}
		for _, f := range o.Fields {
			if err := checkApplied("object "+o.Name+"."+f.Name, LocationFieldDefinition, f.Directives); err != nil {
				return err
			}
			for _, a := range f.Args {
				if err := checkApplied("object "+o.Name+"."+f.Name+"("+a.Name+")", LocationArgumentDefinition, a.Directives); err != nil {
					return err
				}
			}
		}
	}
	for _, i := range s.interfaces {
		for _, f := range i.Fields {
			if err := checkApplied("interface "+i.Name+"."+f.Name, LocationFieldDefinition, f.Directives); err != nil {
				return err
			}
			for _, a := range f.Args {
				if err := checkApplied("interface "+i.Name+"."+f.Name+"("+a.Name+")", LocationArgumentDefinition, a.Directives); err != nil {
					return err
				}
			}
		}
	}
	for _, in := range s.inputs {
		for _, f := range in.Fields {
			if err := checkApplied("input "+in.Name+"."+f.Name, LocationInputFieldDefinition, f.Directives); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateInputs enforces the oneOf invariant: every field of a @oneOf input
// must be nullable (spec.md §4.1).
func (s *Schema) validateInputs() error {
	for _, in := range s.inputs {
		if !in.OneOf {
			continue
		}
		for _, f := range in.Fields {
			if !f.Type.NullableAtOutermost() {
				return newInvalidSchema("input %q is oneOf but field %q is non-nullable", in.Name, f.Name)
			}
		}
	}
	return nil
}

// validateFieldOverrides ensures an Object's fields agree in type with any
// interface field of the same name it implements.
func (s *Schema) validateFieldOverrides() error {
	for _, o := range s.objects {
		for _, ifaceName := range o.Interfaces {
			iface, ok := s.interfaces[ifaceName]
			if !ok {
				continue
			}
			for fieldName, ifaceField := range iface.Fields {
				objField, ok := o.Fields[fieldName]
				if !ok {
					return newInvalidSchema("object %q missing field %q required by interface %q", o.Name, fieldName, ifaceName)
				}
				if !objField.Type.Equal(ifaceField.Type) {
					return newInvalidSchema("object %q field %q (%s) disagrees with interface %q (%s)",
						o.Name, fieldName, objField.Type, ifaceName, ifaceField.Type)
				}
			}
		}
	}
	return nil
}
